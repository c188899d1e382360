package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samplegeo/atlas-cli/internal/ingest"
	"github.com/samplegeo/atlas-cli/internal/source"
)

var (
	ingestDataDir  string
	ingestManifest string
	ingestClear    bool
	ingestSkipLrg  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Import registry exports into the location store",
	Long:  "Parses the registry export files in the data directory, normalizes every row with usable coordinates into one canonical record, and bulk-inserts them into the configured store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if ingestDataDir != "" {
			cfg.Ingest.DataDir = ingestDataDir
		}
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "ingest"))

		// A sources.yaml in the data directory overrides the built-in
		// registry list; --manifest overrides both.
		manifestPath := ingestManifest
		if manifestPath == "" {
			if p := filepath.Join(cfg.Ingest.DataDir, "sources.yaml"); fileExists(p) {
				manifestPath = p
			}
		}
		manifest := source.DefaultManifest()
		if manifestPath != "" {
			m, err := source.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			manifest = m
			log.Info("loaded manifest", zap.String("path", manifestPath), zap.Int("sources", len(m)))
		}

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if err := store.EnsureIndexes(ctx); err != nil {
			return eris.Wrap(err, "ingest: ensure indexes")
		}

		summary, err := ingest.NewRunner(store).Run(ctx, manifest, ingest.Options{
			DataDir:      cfg.Ingest.DataDir,
			Clear:        ingestClear,
			SkipLarge:    ingestSkipLrg,
			Concurrency:  cfg.Ingest.Concurrency,
			StoreTimeout: queryTimeout(),
		})
		if err != nil {
			return err
		}

		writeIngestSummary(os.Stdout, summary)
		return nil
	},
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// writeIngestSummary prints per-source counts. Failed sources are reported
// here but do not fail the command; the exit code only reflects problems
// that stopped the whole run.
func writeIngestSummary(w io.Writer, s *ingest.Summary) {
	fmt.Fprintf(w, "\n--- Import Summary ---\n")
	for _, src := range s.Sources {
		if src.Err != nil {
			fmt.Fprintf(w, "%-16s FAILED: %v\n", src.Kind, src.Err)
			continue
		}
		fmt.Fprintf(w, "%-16s %d imported, %d skipped\n", src.Kind, src.Imported, src.Skipped)
	}
	fmt.Fprintf(w, "Total imported: %d\n", s.Imported)
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed sources: %d\n", s.Failed)
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDataDir, "data-dir", "", "directory holding the registry export files (defaults to config)")
	ingestCmd.Flags().StringVar(&ingestManifest, "manifest", "", "YAML manifest overriding the default source list")
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "clear the store before importing")
	ingestCmd.Flags().BoolVar(&ingestSkipLrg, "skip-large", false, "skip sources marked large in the manifest")
	rootCmd.AddCommand(ingestCmd)
}
