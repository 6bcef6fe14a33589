// Package harvest orchestrates the day-by-day crawl of the gazette index and
// the per-item document downloads.
package harvest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jfandino/boe-harvester/internal/boe"
	"github.com/jfandino/boe-harvester/internal/fetch"
	"github.com/jfandino/boe-harvester/internal/metrics"
)

// defaultStartDate is used when neither a checkpoint nor an explicit start
// date is available.
const defaultStartDate = 19700101

// Fetcher issues one logical retrying GET for a named resource.
type Fetcher interface {
	Fetch(ctx context.Context, name, url string) fetch.Result
}

// Normalizer flattens an index document body into item records.
type Normalizer interface {
	Parse(body []byte) []boe.ItemRecord
}

// RecordStore persists item records and answers per-day lookups.
type RecordStore interface {
	RecordsForDate(date int) ([]boe.ItemRecord, bool)
	Append(records []boe.ItemRecord) int
}

// DocumentStore persists fetched document bodies.
type DocumentStore interface {
	Save(body []byte, identifier, category, format string) (int, error)
}

// CheckpointStore persists the last fully processed date.
type CheckpointStore interface {
	Load() (int, bool)
	Save(date int) error
}

// Config carries the knobs governing one harvest run.
type Config struct {
	// IndexBaseURL is the summary endpoint; the 8-digit date literal is
	// appended to it.
	IndexBaseURL string
	// StartDate overrides the checkpoint when non-zero (YYYYMMDD).
	StartDate int
	// EndDate bounds the run when non-zero (YYYYMMDD); defaults to today.
	EndDate int
	// Formats selects which document variants to download per item.
	Formats []string
	// Concurrency bounds the per-day document worker pool; 1 is fully
	// sequential and preserves per-fetch cooldown pacing.
	Concurrency int
	// IndexOnly skips the document pass entirely.
	IndexOnly bool
}

// Engine runs the crawl. Days are processed strictly in order: the index for
// a day is fetched, normalized, and persisted before any of that day's
// document work starts, and the checkpoint only advances once the whole day
// unit has completed. Work is parallel within a day, never across days.
type Engine struct {
	cfg        Config
	fetcher    Fetcher
	normalizer Normalizer
	records    RecordStore
	documents  DocumentStore
	checkpoint CheckpointStore
	clk        clock.Clock
	logger     *zap.Logger
}

// New builds an Engine from its collaborators.
func New(
	cfg Config,
	fetcher Fetcher,
	normalizer Normalizer,
	records RecordStore,
	documents DocumentStore,
	checkpoint CheckpointStore,
	clk clock.Clock,
	logger *zap.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		records:    records,
		documents:  documents,
		checkpoint: checkpoint,
		clk:        clk,
		logger:     logger,
	}
}

// Run walks the configured day range and returns the number of document
// files saved. Transient failures are absorbed per day; the only error
// returned is context cancellation, and in that case the checkpoint still
// reflects the last fully completed day.
func (e *Engine) Run(ctx context.Context) (int, error) {
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))

	days, err := e.dayRange()
	if err != nil {
		return 0, err
	}
	if len(days) == 0 {
		logger.Info("nothing to do, day range is empty")
		return 0, nil
	}
	logger.Info("starting harvest",
		zap.Int("from", days[0]),
		zap.Int("to", days[len(days)-1]),
		zap.Int("days", len(days)),
		zap.Int("concurrency", e.cfg.Concurrency),
		zap.Bool("index_only", e.cfg.IndexOnly))

	totalSaved := 0
	for _, day := range days {
		if ctx.Err() != nil {
			logger.Info("harvest interrupted", zap.Int("next_day", day))
			return totalSaved, ctx.Err()
		}

		dayRecords := e.recordsForDay(ctx, logger, day)
		if ctx.Err() != nil {
			// Cancellation mid-fetch surfaces as a failed fetch; the day is
			// incomplete and the checkpoint must not cover it.
			logger.Info("harvest interrupted", zap.Int("day", day))
			return totalSaved, ctx.Err()
		}

		if !e.cfg.IndexOnly && len(dayRecords) > 0 {
			saved, err := e.downloadDocuments(ctx, logger, day, dayRecords)
			totalSaved += saved
			if err != nil {
				// Cancellation mid-day: the day is incomplete and the
				// checkpoint must not cover it.
				return totalSaved, err
			}
		}

		if err := e.checkpoint.Save(day); err != nil {
			logger.Error("failed to save checkpoint", zap.Int("day", day), zap.Error(err))
		}
	}

	logger.Info("harvest complete", zap.Int("documents_saved", totalSaved))
	return totalSaved, nil
}

// recordsForDay returns the item records for one day, preferring rows already
// persisted in the record store over a fresh index fetch. A NotFound or
// Exhausted index fetch yields zero records; the day still completes.
func (e *Engine) recordsForDay(ctx context.Context, logger *zap.Logger, day int) []boe.ItemRecord {
	if cached, ok := e.records.RecordsForDate(day); ok {
		metrics.DaysSkipped.Inc()
		logger.Debug("index already stored", zap.Int("day", day), zap.Int("items", len(cached)))
		return cached
	}

	dateLiteral := fmt.Sprintf("%08d", day)
	result := e.fetcher.Fetch(ctx, dateLiteral, e.cfg.IndexBaseURL+dateLiteral)
	if result.Outcome != fetch.OutcomeSuccess {
		logger.Info("no index for day", zap.Int("day", day))
		return nil
	}
	metrics.DaysFetched.Inc()

	records := e.normalizer.Parse(result.Body)
	saved := e.records.Append(records)
	logger.Info("indexed day", zap.Int("day", day), zap.Int("items", saved))
	return records
}

// downloadDocuments fetches every configured format for every item of the
// day through a bounded worker pool. Individual failures are logged and
// counted, never propagated; the returned error is non-nil only when the
// context was canceled before the day finished.
func (e *Engine) downloadDocuments(ctx context.Context, logger *zap.Logger, day int, records []boe.ItemRecord) (int, error) {
	var (
		mu       sync.Mutex
		saved    int
		failures *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, record := range records {
		for _, format := range e.cfg.Formats {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				n, err := e.downloadOne(gctx, record, format)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					metrics.DocumentsFailed.Inc()
					failures = multierror.Append(failures, err)
					return nil
				}
				saved += n
				return nil
			})
		}
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	if failures.ErrorOrNil() != nil {
		logger.Warn("some documents failed for day",
			zap.Int("day", day),
			zap.Int("failed", failures.Len()),
			zap.Errors("errors", failures.WrappedErrors()))
	}
	if ctx.Err() != nil {
		return saved, ctx.Err()
	}
	return saved, nil
}

func (e *Engine) downloadOne(ctx context.Context, record boe.ItemRecord, format string) (int, error) {
	url := record.URLForFormat(format)
	if url == "" {
		return 0, fmt.Errorf("no url_%s for item %s", format, record.Identifier)
	}

	result := e.fetcher.Fetch(ctx, record.Identifier, url)
	switch result.Outcome {
	case fetch.OutcomeSuccess:
		return e.documents.Save(result.Body, record.Identifier, record.SectionName, format)
	case fetch.OutcomeNotFound:
		// Absent document, valid empty result.
		return 0, nil
	default:
		return 0, fmt.Errorf("retries exhausted for item %s (%s)", record.Identifier, format)
	}
}

// dayRange computes the inclusive ascending date range for this run from the
// explicit start (or checkpoint + 1 day, or the epoch default) through the
// explicit end (or today). Start beyond end yields an empty range.
func (e *Engine) dayRange() ([]int, error) {
	start := e.cfg.StartDate
	if start == 0 {
		if last, ok := e.checkpoint.Load(); ok {
			t, err := boe.ParseDateLiteral(last)
			if err != nil {
				return nil, fmt.Errorf("checkpoint date %d: %w", last, err)
			}
			start = boe.FormatDateLiteral(t.AddDate(0, 0, 1))
		} else {
			start = defaultStartDate
		}
	}

	end := e.cfg.EndDate
	if end == 0 {
		end = boe.FormatDateLiteral(e.clk.Now())
	}

	startDay, err := boe.ParseDateLiteral(start)
	if err != nil {
		return nil, fmt.Errorf("start date %d: %w", start, err)
	}
	endDay, err := boe.ParseDateLiteral(end)
	if err != nil {
		return nil, fmt.Errorf("end date %d: %w", end, err)
	}

	var days []int
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		days = append(days, boe.FormatDateLiteral(d))
	}
	return days, nil
}
