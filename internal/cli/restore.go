package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/coldvault/internal/common"
	"github.com/dmitrijs2005/coldvault/internal/manifest"
	"github.com/dmitrijs2005/coldvault/internal/objstore"
	"github.com/dmitrijs2005/coldvault/internal/provenance"
	"github.com/dmitrijs2005/coldvault/internal/restore"
)

var restoreOverwrite bool

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Bring archived files back from cold storage",
	Long: `Restoring from archive-class storage is asynchronous, so it runs in
two phases under one request id. "request" resolves the manifest against the
provenance store and asks storage to thaw each object. Hours or days later,
"download" polls thaw progress and places every completed file; it can be
re-run as often as needed until everything is placed.`,
}

var restoreRequestCmd = &cobra.Command{
	Use:   "request <manifest> [request-id]",
	Short: "Resolve a restore manifest and request thawing",
	Example: `  coldvault restore request restores/2026-08.csv RST-2026-0815
  coldvault restore download RST-2026-0815`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRestoreRequest,
}

var restoreDownloadCmd = &cobra.Command{
	Use:   "download <request-id>",
	Short: "Poll thaw progress and download completed files",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestoreDownload,
}

func init() {
	restoreCmd.AddCommand(restoreRequestCmd)
	restoreCmd.AddCommand(restoreDownloadCmd)

	restoreDownloadCmd.Flags().BoolVar(&restoreOverwrite, "overwrite", false,
		"Replace destination files that already exist")
}

func runRestoreRequest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	manifestPath := args[0]
	requestID := requestIDArg(args, 1)

	entries, rejected, err := manifest.ParseRestore(manifestPath)
	if err != nil {
		return err
	}
	if len(rejected) > 0 {
		log.Warn(ctx, "restore manifest lines rejected", "count", len(rejected))
		reportPath := filepath.Join(cfg.StateDir, "restore_errors_"+requestID+".csv")
		if err := os.MkdirAll(cfg.StateDir, 0o755); err == nil {
			if err := manifest.WriteErrorReport(reportPath, rejected); err != nil {
				log.Error(ctx, "writing error report failed", "path", reportPath, "err", err)
			}
		}
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: restore manifest has no usable lines", common.ErrNoValidTargets)
	}

	// Unlike archiving, restore cannot run without the provenance store:
	// original paths resolve to object keys only through archive history.
	repo, err := provenance.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("provenance store: %w", err)
	}
	defer repo.Close()

	orch, err := newOrchestrator(cmd, repo)
	if err != nil {
		return err
	}

	doc, summary, err := orch.RunRequest(ctx, entries, requestID)
	if err != nil {
		return err
	}

	fmt.Printf("\nRestore request %s submitted\n", requestID)
	fmt.Printf("  manifest entries:    %d (%d rejected)\n", summary.Entries, len(rejected))
	fmt.Printf("  files resolved:      %d\n", summary.Resolved)
	fmt.Printf("  entries unresolved:  %d\n", summary.Unresolved)
	fmt.Printf("  thaws requested:     %d (%d already running)\n", summary.Requested, summary.InProgress)
	fmt.Printf("  failed:              %d\n", summary.Failed)
	fmt.Printf("  status document:     %s\n", orchDocPath(doc.RequestID))
	fmt.Printf("\nRun `coldvault restore download %s` once thawing completes.\n", requestID)
	return nil
}

func runRestoreDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	requestID := args[0]

	orch, err := newOrchestrator(cmd, nil)
	if err != nil {
		return err
	}

	docs := restore.NewDocStore(cfg.StateDir)
	doc, err := docs.Load(requestID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	summary, err := orch.RunDownload(ctx, doc)
	if err != nil {
		return err
	}

	fmt.Printf("\nRestore %s progress\n", requestID)
	fmt.Printf("  items:      %d\n", summary.Items)
	fmt.Printf("  downloaded: %d\n", summary.Downloaded)
	fmt.Printf("  skipped:    %d (already present)\n", summary.Skipped)
	fmt.Printf("  waiting:    %d\n", summary.Waiting)
	fmt.Printf("  failed:     %d\n", summary.Failed)

	if summary.Done() {
		if failures := restore.Failures(doc); len(failures) > 0 {
			retryPath := filepath.Join(cfg.StateDir, "restore_retry_"+requestID+".csv")
			reportPath := filepath.Join(cfg.StateDir, "restore_failures_"+requestID+".csv")
			if err := restore.WriteRetryManifest(retryPath, failures); err != nil {
				log.Error(ctx, "writing restore retry manifest failed", "path", retryPath, "err", err)
			}
			if err := restore.WriteFailureReport(reportPath, failures); err != nil {
				log.Error(ctx, "writing restore failure report failed", "path", reportPath, "err", err)
			}
			fmt.Printf("\nRetry manifest: %s\n", retryPath)
		}
		if summary.Downloaded+summary.Skipped == 0 && summary.Failed > 0 {
			return fmt.Errorf("restore %s finished with nothing placed", requestID)
		}
		fmt.Println("\nRestore complete.")
	} else {
		fmt.Println("\nSome items are still thawing. Run this command again later.")
	}
	return nil
}

func newOrchestrator(cmd *cobra.Command, repo provenance.Repository) (*restore.Orchestrator, error) {
	store, err := objstore.New(cmd.Context(), storeOptions())
	if err != nil {
		return nil, fmt.Errorf("storage client init: %w", err)
	}
	opts := restore.Options{
		Tier:         cfg.RestoreTier,
		Days:         int32(cfg.RestoreDays),
		SkipExisting: cfg.SkipExisting,
		Overwrite:    restoreOverwrite,
		TempDir:      cfg.TempDir,
		Retries:      cfg.RetryCount,
		Backoff:      cfg.RetryBackoff,
	}
	return restore.NewOrchestrator(store, repo, restore.NewDocStore(cfg.StateDir), opts, log), nil
}

func orchDocPath(requestID string) string {
	return restore.NewDocStore(cfg.StateDir).Path(requestID)
}
