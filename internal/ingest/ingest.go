// Package ingest runs source files through their adapters and bulk-inserts
// the normalized records into the location store.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/samplegeo/atlas-cli/internal/locstore"
	"github.com/samplegeo/atlas-cli/internal/model"
	"github.com/samplegeo/atlas-cli/internal/source"
)

// Options control a single ingest run.
type Options struct {
	// DataDir is the directory holding the manifest's source files.
	DataDir string
	// Clear removes all stored locations before importing.
	Clear bool
	// SkipLarge skips manifest entries flagged large.
	SkipLarge bool
	// Concurrency bounds how many sources import at once. Values below 1
	// run sources one at a time.
	Concurrency int
	// StoreTimeout bounds each store call. Zero means no deadline beyond
	// the caller's context.
	StoreTimeout time.Duration
}

// SourceReport is the outcome of one attempted source file.
type SourceReport struct {
	Kind     source.Kind
	System   model.SystemName
	File     string
	Imported int64
	Skipped  int
	Err      error
}

// Summary aggregates a run across all attempted sources. Failed sources
// contribute to Failed only; their partial counts are not included.
type Summary struct {
	Sources  []SourceReport
	Imported int64
	Skipped  int
	Failed   int
}

// Runner drives ingestion into a single store.
type Runner struct {
	store locstore.Store
}

func NewRunner(store locstore.Store) *Runner {
	return &Runner{store: store}
}

// Run executes the manifest against the data directory. Source failures are
// isolated: a file that fails to parse or insert is reported in the summary
// without stopping the others. Run itself fails when the data directory is
// missing, nothing in the manifest is importable, clearing fails, or the
// context is cancelled.
func (r *Runner) Run(ctx context.Context, manifest []source.Spec, opts Options) (*Summary, error) {
	log := zap.L().With(zap.String("component", "ingest"))

	info, err := os.Stat(opts.DataDir)
	if err != nil || !info.IsDir() {
		return nil, eris.Errorf("ingest: data directory does not exist: %s", opts.DataDir)
	}

	type task struct {
		spec    source.Spec
		adapter source.Adapter
		path    string
	}
	var tasks []task
	for _, spec := range manifest {
		adapter, err := source.ForKind(spec.Kind)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: manifest")
		}
		if spec.Disabled {
			log.Info("source disabled, skipping", zap.String("kind", string(spec.Kind)))
			continue
		}
		if spec.Large && opts.SkipLarge {
			log.Info("skipping large file as requested", zap.String("kind", string(spec.Kind)))
			continue
		}
		path := filepath.Join(opts.DataDir, spec.File)
		if !validFile(path) {
			continue
		}
		tasks = append(tasks, task{spec: spec, adapter: adapter, path: path})
	}
	if len(tasks) == 0 {
		return nil, eris.New("ingest: no valid files found to import")
	}

	if opts.Clear {
		cctx, cancel := storeContext(ctx, opts.StoreTimeout)
		removed, err := r.store.ClearAll(cctx)
		cancel()
		if err != nil {
			return nil, eris.Wrap(err, "ingest: clear collection")
		}
		log.Info("cleared collection before import", zap.Int64("removed", removed))
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	// Reports land at their task index so the summary keeps manifest
	// order no matter how the group schedules them.
	reports := make([]SourceReport, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			reports[i] = r.runSource(gctx, t.adapter, t.spec, t.path, opts.StoreTimeout)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: run")
	}

	summary := &Summary{Sources: reports}
	for i := range reports {
		if reports[i].Err != nil {
			summary.Failed++
			continue
		}
		summary.Imported += reports[i].Imported
		summary.Skipped += reports[i].Skipped
	}

	log.Info("import process completed",
		zap.Int64("total_imported", summary.Imported),
		zap.Int("skipped_rows", summary.Skipped),
		zap.Int("failed_sources", summary.Failed))
	return summary, nil
}

func (r *Runner) runSource(ctx context.Context, adapter source.Adapter, spec source.Spec, path string, storeTimeout time.Duration) SourceReport {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("kind", string(spec.Kind)))
	report := SourceReport{Kind: spec.Kind, System: adapter.SystemName(), File: path}

	if spec.Large {
		log.Info("importing large file, this may take a while")
	} else {
		log.Info("importing")
	}

	f, err := os.Open(path)
	if err != nil {
		report.Err = eris.Wrapf(err, "ingest: open %s", path)
		log.Error("import failed", zap.Error(report.Err))
		return report
	}
	defer f.Close() //nolint:errcheck

	records, skipped, err := adapter.Parse(ctx, f)
	if err != nil {
		report.Err = eris.Wrapf(err, "ingest: parse %s", path)
		log.Error("import failed", zap.Error(report.Err))
		return report
	}
	report.Skipped = skipped

	ictx, cancel := storeContext(ctx, storeTimeout)
	inserted, err := r.store.BulkInsert(ictx, records)
	cancel()
	if err != nil {
		report.Err = eris.Wrapf(err, "ingest: insert %s", spec.Kind)
		log.Error("import failed", zap.Error(report.Err))
		return report
	}
	report.Imported = inserted

	log.Info("imported", zap.Int64("records", inserted), zap.Int("skipped", skipped))
	return report
}

// storeContext applies the configured store timeout, when there is one.
func storeContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// validFile reports whether path exists and is a regular file. A missing
// file is logged and skipped rather than failing the whole run.
func validFile(path string) bool {
	log := zap.L().With(zap.String("component", "ingest"))
	info, err := os.Stat(path)
	if err != nil {
		log.Warn("file not found", zap.String("path", path))
		return false
	}
	if !info.Mode().IsRegular() {
		log.Warn("not a file", zap.String("path", path))
		return false
	}
	return true
}
