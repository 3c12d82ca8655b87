// Package archive ties the archive pipeline together: parse and validate the
// manifest, discover eligible files, upload them through the worker pool,
// finalize with markers, record provenance, and leave retry artifacts for
// whatever failed.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/coldvault/internal/common"
	"github.com/dmitrijs2005/coldvault/internal/config"
	"github.com/dmitrijs2005/coldvault/internal/discovery"
	"github.com/dmitrijs2005/coldvault/internal/finalizer"
	"github.com/dmitrijs2005/coldvault/internal/format"
	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/manifest"
	"github.com/dmitrijs2005/coldvault/internal/provenance"
	"github.com/dmitrijs2005/coldvault/internal/uploader"
)

// Runner executes one archive run end to end. The provenance repository may
// be nil when the database is unreachable; archiving proceeds and the gap is
// logged, since the files are already safe in object storage.
type Runner struct {
	cfg      *config.Config
	newStore uploader.StoreFactory
	repo     provenance.Repository
	out      io.Writer
	log      logging.Logger
	now      func() time.Time
}

func NewRunner(cfg *config.Config, newStore uploader.StoreFactory, repo provenance.Repository, out io.Writer, log logging.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		newStore: newStore,
		repo:     repo,
		out:      out,
		log:      log,
		now:      time.Now,
	}
}

// Summary is the outcome of one archive run.
type Summary struct {
	Rejected   int
	Discovered int
	Succeeded  int
	Failed     int
	Recorded   int
	Bytes      int64
	Elapsed    time.Duration
}

// Run archives everything the manifest names. It returns an error only when
// the run as a whole failed: unreadable manifest, no usable manifest rows,
// or every single upload failing. Partial failure is success with retry
// artifacts.
func (r *Runner) Run(ctx context.Context, manifestPath, requestID string) (Summary, error) {
	var summary Summary
	requestDate := r.now().UTC()

	entries, rejected, err := manifest.ParseArchive(manifestPath)
	if err != nil {
		return summary, err
	}
	summary.Rejected = len(rejected)
	if len(rejected) > 0 {
		r.log.Warn(ctx, "manifest lines rejected", "count", len(rejected))
	}
	if len(entries) == 0 {
		r.writeArtifacts(ctx, requestID, nil, rejected)
		if len(rejected) > 0 {
			return summary, fmt.Errorf("%w: all %d manifest lines were rejected",
				common.ErrNoValidTargets, len(rejected))
		}
		return summary, fmt.Errorf("%w: manifest is empty", common.ErrNoValidTargets)
	}

	scanner := discovery.NewScanner(r.cfg.ExcludeExtensions, r.cfg.ArchiveSuffix, r.cfg.MaxFileSize, r.log)
	tasks := scanner.Collect(ctx, entries)
	summary.Discovered = len(tasks)
	if len(tasks) == 0 {
		r.log.Info(ctx, "nothing to archive", "entries", len(entries))
		r.writeArtifacts(ctx, requestID, nil, rejected)
		return summary, nil
	}

	pool := uploader.NewCoordinator(r.newStore, r.cfg.S3Bucket,
		r.cfg.Workers, r.cfg.RetryCount, r.cfg.RetryBackoff, r.out, r.log)
	results, tally, err := pool.Run(ctx, tasks)
	if err != nil {
		return summary, err
	}
	summary.Bytes = tally.Bytes
	summary.Elapsed = tally.Elapsed

	results = finalizer.New(r.cfg.ArchiveSuffix, r.log).Finalize(ctx, results)

	for _, res := range results {
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	summary.Recorded = r.recordProvenance(ctx, results, requestID, requestDate)
	r.writeArtifacts(ctx, requestID, results, rejected)

	r.log.Info(ctx, "archive run finished",
		"request_id", requestID,
		"discovered", summary.Discovered,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"recorded", summary.Recorded,
		"bytes", format.Bytes(summary.Bytes),
		"elapsed", summary.Elapsed.Round(time.Second))

	if summary.Succeeded == 0 {
		return summary, fmt.Errorf("all %d uploads failed", summary.Failed)
	}
	return summary, nil
}

// recordProvenance inserts one archive_history row per archived file in a
// single transaction. A provenance failure is never fatal: the files are
// already uploaded and finalized, so losing the run beats losing the record
// only on paper. The operator is told loudly instead.
func (r *Runner) recordProvenance(ctx context.Context, results []uploader.Result, requestID string, requestDate time.Time) int {
	if r.repo == nil {
		r.log.Warn(ctx, "provenance store unavailable, archive history not recorded",
			"request_id", requestID)
		return 0
	}

	archiveDate := r.now().UTC()
	var records []provenance.ArchiveRecord
	for _, res := range results {
		if !res.Success {
			continue
		}
		records = append(records, provenance.ArchiveRecord{
			RequestID:    requestID,
			Requester:    r.cfg.Requester,
			RequestDate:  requestDate,
			OriginalPath: res.Path,
			S3Path:       res.Locator.String(),
			ArchiveDate:  archiveDate,
			FileSize:     res.Size,
		})
	}
	if len(records) == 0 {
		return 0
	}

	inserted, err := r.repo.InsertBatch(ctx, records)
	if err != nil {
		r.log.Error(ctx, "recording archive history failed", "request_id", requestID, "err", err)
		return 0
	}
	if inserted < len(records) {
		r.log.Warn(ctx, "some paths were already recorded",
			"inserted", inserted, "archived", len(records))
	}
	return inserted
}

// writeArtifacts leaves a retry manifest and an error report for whatever
// failed, stamped with the request id. The retry manifest names the failed
// files' source directories, not the files themselves: re-walking the
// directory picks up exactly the non-archived leftovers, since markers gate
// discovery. Nothing is written when there is nothing to report.
func (r *Runner) writeArtifacts(ctx context.Context, requestID string, results []uploader.Result, rejected []manifest.ErrorItem) {
	var failedDirs []string
	items := append([]manifest.ErrorItem(nil), rejected...)
	for _, res := range results {
		if res.Success {
			continue
		}
		failedDirs = append(failedDirs, res.SourceDir)
		reason := "upload failed"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		items = append(items, manifest.ErrorItem{Content: res.Path, Reason: reason, OriginalLine: res.Path})
	}
	if len(failedDirs) == 0 && len(items) == 0 {
		return
	}

	if err := os.MkdirAll(r.cfg.StateDir, 0o755); err != nil {
		r.log.Error(ctx, "cannot create state dir for retry artifacts", "dir", r.cfg.StateDir, "err", err)
		return
	}

	if len(failedDirs) > 0 {
		path := filepath.Join(r.cfg.StateDir, "archive_retry_"+requestID+".csv")
		if err := manifest.WriteRetry(path, "", failedDirs); err != nil {
			r.log.Error(ctx, "writing retry manifest failed", "path", path, "err", err)
		} else {
			r.log.Info(ctx, "retry manifest written", "path", path, "rows", len(failedDirs))
		}
	}
	if len(items) > 0 {
		path := filepath.Join(r.cfg.StateDir, "archive_errors_"+requestID+".csv")
		if err := manifest.WriteErrorReport(path, items); err != nil {
			r.log.Error(ctx, "writing error report failed", "path", path, "err", err)
		} else {
			r.log.Info(ctx, "error report written", "path", path, "rows", len(items))
		}
	}
}
