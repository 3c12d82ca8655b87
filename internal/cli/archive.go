package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/coldvault/internal/archive"
	"github.com/dmitrijs2005/coldvault/internal/format"
	"github.com/dmitrijs2005/coldvault/internal/provenance"
)

var archiveWorkers int

var archiveCmd = &cobra.Command{
	Use:   "archive <manifest> [request-id]",
	Short: "Archive every file the manifest names",
	Long: `Parse the archive manifest, discover eligible files under its
entries, upload them in parallel, replace each uploaded file with a
zero-byte marker, and record one provenance row per archived file.

Failed uploads never abort the run. They are collected into a retry
manifest that can be resubmitted as-is, alongside an error report naming
the reason for every rejected or failed line.`,
	Example: `  coldvault archive requests/2026-08.csv REQ-2026-0815
  coldvault archive retry.csv --workers 8`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().IntVarP(&archiveWorkers, "workers", "w", 0,
		"Upload pool width (0 selects automatic sizing)")
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	manifestPath := args[0]
	requestID := requestIDArg(args, 1)

	if archiveWorkers > 0 {
		cfg.Workers = archiveWorkers
	}

	// The provenance store is best effort for archiving: files already in
	// object storage must not be blocked by a database outage.
	var repo provenance.Repository
	pg, err := provenance.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "provenance store unavailable, continuing without it", "err", err)
	} else {
		defer pg.Close()
		repo = pg
	}

	runner := archive.NewRunner(cfg, storeFactory(), repo, os.Stdout, log)
	summary, err := runner.Run(ctx, manifestPath, requestID)
	if err != nil {
		return err
	}

	fmt.Printf("\nArchive run %s finished\n", requestID)
	fmt.Printf("  discovered: %d\n", summary.Discovered)
	fmt.Printf("  archived:   %d (%s)\n", summary.Succeeded, format.Bytes(summary.Bytes))
	fmt.Printf("  failed:     %d\n", summary.Failed)
	fmt.Printf("  rejected:   %d manifest lines\n", summary.Rejected)
	fmt.Printf("  recorded:   %d provenance rows\n", summary.Recorded)
	fmt.Printf("  elapsed:    %s\n", summary.Elapsed.Round(time.Second))
	return nil
}
