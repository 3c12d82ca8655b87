// Package cli wires the cobra command tree for the coldvault tool. Commands
// stay thin: they load configuration, build the components, delegate to the
// pipeline packages, and translate the outcome into an exit code.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/coldvault/internal/config"
	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/objstore"
	"github.com/dmitrijs2005/coldvault/internal/uploader"
)

var (
	cfgPath string
	verbose bool

	cfg *config.Config
	log logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coldvault",
	Short: "Archive file-server trees to cold object storage and bring them back",
	Long: `coldvault moves files named by a manifest into archive-class object
storage, replaces each archived file with a zero-byte marker, and records
provenance in PostgreSQL. The restore commands run the reverse flow in two
phases: request a thaw, then poll and download once the storage class allows
it. Secrets are read from the environment (a .env file is honored).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		log = newLogger(verbose)
		return nil
	},
}

// Execute runs the command tree under a signal-aware context so an interrupt
// cancels in-flight transfers instead of killing the process mid-write.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(restoreCmd)

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newLogger(verbose bool) logging.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logging.NewSlogLogger(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// requestIDArg returns the optional request-id argument, minting one when the
// operator did not supply it. Every run gets an id either way: the retry
// artifacts, the provenance rows and the restore status document all key on it.
func requestIDArg(args []string, idx int) string {
	if len(args) > idx && args[idx] != "" {
		return args[idx]
	}
	return uuid.NewString()
}

// storeOptions translates configuration into object-storage client options.
func storeOptions() objstore.Options {
	return objstore.Options{
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		StorageClass: objstore.NormalizeStorageClass(cfg.StorageClass),
	}
}

// storeFactory hands the upload pool a constructor for per-worker client
// handles.
func storeFactory() uploader.StoreFactory {
	opts := storeOptions()
	return func(ctx context.Context) (objstore.Store, error) {
		return objstore.New(ctx, opts)
	}
}
