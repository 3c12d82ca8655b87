package restore

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/dmitrijs2005/coldvault/internal/manifest"
)

const utf8BOM = "\ufeff"

// WriteRetryManifest writes the failed items in the restore-manifest shape
// so the file can be resubmitted to `coldvault restore request` unchanged.
// Each row keeps its own mode: resolved items come back as file rows, while
// an entry that never resolved keeps its original mode, since re-requesting
// an unresolved directory as a file row could never match.
func WriteRetryManifest(path string, failures []RetryFailure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create restore retry manifest: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Restore Path", "Destination", "Mode"}); err != nil {
		return err
	}
	for _, fail := range failures {
		mode := fail.Mode
		if mode == "" {
			mode = manifest.ModeFile
		}
		if err := w.Write([]string{fail.SourcePath, fail.DestDir, string(mode)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteFailureReport writes the structured companion to the retry manifest:
// which stage each item failed in and why.
func WriteFailureReport(path string, failures []RetryFailure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create restore failure report: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"source_path", "destination", "stage", "reason"}); err != nil {
		return err
	}
	for _, fail := range failures {
		if err := w.Write([]string{fail.SourcePath, fail.DestDir, fail.Stage, fail.Reason}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
