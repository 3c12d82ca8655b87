// Package finalizer performs the order-sensitive local mutation that defines
// "archived": create a zero-byte marker next to the original, verify it,
// then delete the original. The unsafe state (original gone with no marker)
// is unreachable by construction: the original is only ever deleted after
// the marker demonstrably exists, and a marker left behind by a failed
// deletion is removed as compensation.
package finalizer

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/uploader"
)

// Hooks for tests to inject failures between the marker and delete steps.
var (
	writeMarker = func(path string) error {
		return os.WriteFile(path, nil, 0o644)
	}
	statFile   = os.Stat
	removeFile = os.Remove
)

type Finalizer struct {
	suffix string
	log    logging.Logger
}

func New(suffix string, log logging.Logger) *Finalizer {
	return &Finalizer{suffix: suffix, log: log}
}

// Finalize converts each successful upload into the archived state. Failed
// uploads pass through untouched. A result whose finalization fails is
// downgraded to a failed result so the retry manifest picks it up; its
// original file is left intact.
func (f *Finalizer) Finalize(ctx context.Context, results []uploader.Result) []uploader.Result {
	out := make([]uploader.Result, len(results))
	archived := 0

	for i, r := range results {
		if !r.Success {
			out[i] = r
			continue
		}
		if err := f.finalizeOne(ctx, r.Path); err != nil {
			f.log.Error(ctx, "finalize failed", "path", r.Path, "err", err)
			r.Success = false
			r.Err = fmt.Errorf("finalize: %w", err)
		} else {
			archived++
		}
		out[i] = r
	}

	f.log.Info(ctx, "finalize complete", "archived", archived, "total", len(results))
	return out
}

func (f *Finalizer) finalizeOne(ctx context.Context, path string) error {
	marker := path + f.suffix

	if err := writeMarker(marker); err != nil {
		return fmt.Errorf("create marker: %w", err)
	}
	if _, err := statFile(marker); err != nil {
		return fmt.Errorf("verify marker: %w", err)
	}

	if err := removeFile(path); err != nil {
		// Compensate: a marker must never persist alongside the original.
		if cleanupErr := removeFile(marker); cleanupErr != nil {
			f.log.Warn(ctx, "orphan marker cleanup failed", "marker", marker, "err", cleanupErr)
		}
		return fmt.Errorf("delete original: %w", err)
	}
	if _, err := statFile(path); err == nil {
		if cleanupErr := removeFile(marker); cleanupErr != nil {
			f.log.Warn(ctx, "orphan marker cleanup failed", "marker", marker, "err", cleanupErr)
		}
		return fmt.Errorf("original still present after delete: %s", path)
	}

	f.log.Debug(ctx, "archived", "path", path, "marker", marker)
	return nil
}
