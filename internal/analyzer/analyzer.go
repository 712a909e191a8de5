package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"exchangeflow/config"
	"exchangeflow/internal/batch"
	"exchangeflow/internal/chart"
	"exchangeflow/internal/flow"
	"exchangeflow/internal/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Uploader publishes the files of a finished run.
type Uploader interface {
	UploadFiles(ctx context.Context, runID string, files []string) ([]string, error)
}

// Result is what one Run produced. Files holds every local file the run
// wrote, reports first.
type Result struct {
	Reports  report.Reports
	Files    []string
	Charts   []string
	Uploaded []string
}

// Analyzer runs one aggregation pass over the configured data directory.
type Analyzer struct {
	cfg        *config.Config
	logger     *zap.Logger
	classifier flow.Classifier
	sinks      []report.Sink
	renderer   *chart.Renderer
	uploader   Uploader
}

type Option func(*Analyzer)

// WithSink adds an optional sink. Its failures are logged, not returned.
func WithSink(s report.Sink) Option {
	return func(a *Analyzer) { a.sinks = append(a.sinks, s) }
}

// WithUploader publishes the files of the run after reports and charts are written.
func WithUploader(u Uploader) Option {
	return func(a *Analyzer) { a.uploader = u }
}

func New(cfg *config.Config, classifier flow.Classifier, logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Analyzer{
		cfg:        cfg,
		logger:     logger,
		classifier: classifier,
	}

	if cfg.Report.XLSX {
		a.sinks = append(a.sinks, &report.XLSXSink{Dir: cfg.OutputDir})
	}

	if cfg.Charts.Enabled {
		a.renderer = &chart.Renderer{
			Dir: cfg.OutputDir,
			Opts: chart.Options{
				TopNVolume:      cfg.Charts.TopNVolume,
				TopNFlow:        cfg.Charts.TopNFlow,
				TopNTimeSeries:  cfg.Charts.TopNTimeSeries,
				TopNMarketShare: cfg.Charts.TopNMarketShare,
				WidthPx:         cfg.Charts.WidthPx,
				HeightPx:        cfg.Charts.HeightPx,
			},
			Logger: logger,
		}
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// batchResult is the outcome of reading one batch into its own accumulator.
type batchResult struct {
	path    string
	partial *flow.Accumulator
	err     error
	done    bool
}

// Run discovers batches, aggregates them and writes every configured output.
// Batch failures are logged and counted; only configuration, discovery and
// the CSV reports can fail the run.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	info := report.RunInfo{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		StartDate: a.cfg.StartDate,
		EndDate:   a.cfg.EndDate,
	}
	log := a.logger.With(zap.String("run_id", info.ID))

	start, end, err := a.cfg.DateBounds()
	if err != nil {
		return nil, err
	}
	dates := batch.DateRange{Start: start, End: end}

	found, err := batch.Discover(a.cfg.DataDir, a.cfg.FilePattern)
	if err != nil {
		return nil, fmt.Errorf("discover batches: %w", err)
	}

	var selected []string
	for _, path := range found {
		if !dates.Includes(path) {
			log.Debug("batch outside date range", zap.String("batch", filepath.Base(path)))
			continue
		}
		selected = append(selected, path)
	}
	info.BatchesFound = len(found)
	info.BatchesFiltered = len(found) - len(selected)

	log.Info("batches selected",
		zap.Int("found", len(found)),
		zap.Int("selected", len(selected)),
		zap.Stringer("range", dates),
	)

	results := a.processBatches(ctx, log, selected)

	acc := flow.NewAccumulator(a.classifier)
	for _, res := range results {
		if !res.done {
			continue
		}
		if res.err != nil {
			info.BatchesSkipped++
		} else {
			info.BatchesProcessed++
		}
		if res.partial == nil {
			continue
		}
		if err := acc.Merge(res.partial); err != nil {
			return nil, fmt.Errorf("merge batch %s: %w", filepath.Base(res.path), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	info.Transactions = acc.Transactions()
	info.Matched = acc.Matched()

	reports := report.Reports{
		Summary: acc.Summary(),
		Daily:   acc.Daily(),
	}

	if err := os.MkdirAll(a.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{}

	info.FinishedAt = time.Now().UTC()
	reports.Run = info

	csv := &report.CSVSink{Dir: a.cfg.OutputDir}
	if err := csv.WriteReports(ctx, reports); err != nil {
		return nil, fmt.Errorf("write csv reports: %w", err)
	}
	res.Files = append(res.Files, csv.Files()...)

	if !a.cfg.Report.XLSX {
		a.removeStale(log, filepath.Join(a.cfg.OutputDir, report.WorkbookFile))
	}

	for _, sink := range a.sinks {
		fs, local := sink.(report.FileSink)
		if err := sink.WriteReports(ctx, reports); err != nil {
			log.Warn("sink failed", zap.String("sink", sink.Name()), zap.Error(err))
			if local {
				for _, f := range fs.Files() {
					a.removeStale(log, f)
				}
			}
			continue
		}
		if local {
			res.Files = append(res.Files, fs.Files()...)
		}
		log.Debug("sink written", zap.String("sink", sink.Name()))
	}

	if a.renderer != nil {
		charts, err := a.renderer.RenderAll(reports.Summary, reports.Daily)
		if err != nil {
			log.Warn("chart rendering failed", zap.Error(err))
		}
		res.Charts = charts
		res.Files = append(res.Files, charts...)
	} else {
		for _, name := range chart.Files {
			a.removeStale(log, filepath.Join(a.cfg.OutputDir, name))
		}
	}

	if a.uploader != nil {
		uploaded, err := a.uploader.UploadFiles(ctx, info.ID, res.Files)
		if err != nil {
			log.Warn("upload failed", zap.Error(err))
		}
		res.Uploaded = uploaded
	}

	res.Reports = reports
	return res, nil
}

// removeStale deletes a file an earlier run left in the output directory so
// it is not mistaken for output of this run.
func (a *Analyzer) removeStale(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove stale output", zap.String("file", filepath.Base(path)), zap.Error(err))
	}
}

// processBatches reads each batch into its own accumulator. At most
// cfg.Workers batches are read at once; results keep the input order.
func (a *Analyzer) processBatches(ctx context.Context, log *zap.Logger, paths []string) []batchResult {
	results := make([]batchResult, len(paths))
	units := batch.Units{Amount: a.cfg.AmountUnit, Timestamp: a.cfg.TimestampUnit}

	sem := make(chan struct{}, a.cfg.Workers)
	var wg sync.WaitGroup

	for i, path := range paths {
		results[i].path = path

		select {
		case <-ctx.Done():
			log.Warn("run cancelled, not scheduling remaining batches", zap.Int("remaining", len(paths)-i))
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()

			partial, err := a.readBatch(path, units)
			results[i].partial = partial
			results[i].err = err
			results[i].done = true

			if err != nil {
				log.Warn("batch skipped", zap.String("batch", filepath.Base(path)), zap.Error(err))
				return
			}
			log.Info("batch processed",
				zap.String("batch", filepath.Base(path)),
				zap.Int64("transactions", partial.Transactions()),
				zap.Int64("matched", partial.Matched()),
			)
		}(i, path)
	}

	wg.Wait()
	return results
}

// readBatch returns whatever was accumulated before a failure alongside the
// error; records applied before the failing one are kept.
func (a *Analyzer) readBatch(path string, units batch.Units) (*flow.Accumulator, error) {
	reader, err := batch.ReaderFor(path, units)
	if err != nil {
		return nil, err
	}

	partial := flow.NewAccumulator(a.classifier)
	if err := reader.ReadBatch(path, partial.Ingest); err != nil {
		return partial, err
	}
	return partial, nil
}
