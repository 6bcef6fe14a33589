package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/api"
	"github.com/jfandino/boe-harvester/internal/boe"
	"github.com/jfandino/boe-harvester/internal/config"
	"github.com/jfandino/boe-harvester/internal/fetch"
	"github.com/jfandino/boe-harvester/internal/harvest"
	"github.com/jfandino/boe-harvester/internal/logging"
	"github.com/jfandino/boe-harvester/internal/store"
)

// newHarvestCmd creates and configures the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	var (
		start       int
		end         int
		output      string
		formats     []string
		concurrency int
		cooldown    float64
		indexOnly   bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs the day-by-day gazette harvest",
		Long: `Walks the configured day range, fetching and storing the daily index and
optionally each item's documents. Resumes from the stored checkpoint unless
--start is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("start") {
				cfg.Harvest.StartDate = start
			}
			if flags.Changed("end") {
				cfg.Harvest.EndDate = end
			}
			if flags.Changed("output") {
				cfg.Storage.OutputDir = output
			}
			if flags.Changed("formats") {
				cfg.Harvest.Formats = formats
			}
			if flags.Changed("concurrency") {
				cfg.Harvest.Concurrency = concurrency
				if concurrency > 1 {
					cfg.HTTP.CooldownSeconds = 0
				}
			}
			if flags.Changed("cooldown") && cfg.Harvest.Concurrency <= 1 {
				cfg.HTTP.CooldownSeconds = cooldown
			}
			if flags.Changed("index-only") {
				cfg.Harvest.IndexOnly = indexOnly
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runHarvest(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&start, "start", 0, "start date (YYYYMMDD); overrides the checkpoint")
	cmd.Flags().IntVar(&end, "end", 0, "end date (YYYYMMDD); defaults to today")
	cmd.Flags().StringVar(&output, "output", "data", "directory for the CSV store, checkpoint, and documents")
	cmd.Flags().StringSliceVar(&formats, "formats", []string{"xml"}, "document formats to download (pdf, html, xml)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "document fetch workers per day (1 = sequential)")
	cmd.Flags().Float64Var(&cooldown, "cooldown", 1.0, "seconds to wait before each request; ignored when concurrency > 1")
	cmd.Flags().BoolVar(&indexOnly, "index-only", false, "only harvest the index, skip document downloads")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "optional listen address for /metrics and /healthz")

	return cmd
}

func runHarvest(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := api.NewServer(cfg.Metrics.Addr, logging.ForComponent(logger, "api"))
		go srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics listener shutdown failed", zap.Error(err))
			}
		}()
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	saved, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("harvest interrupted", zap.Int("documents_saved", saved))
			return nil
		}
		return fmt.Errorf("run harvest: %w", err)
	}
	logger.Info("harvest finished", zap.Int("documents_saved", saved))
	return nil
}

func buildEngine(cfg config.Config, logger *zap.Logger) (*harvest.Engine, error) {
	fetcher := fetch.New(fetch.Config{
		Cooldown:   cfg.Cooldown(),
		MaxRetries: cfg.HTTP.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
		Timeout:    cfg.Timeout(),
		UserAgent:  cfg.Endpoints.UserAgent,
	}, logging.ForComponent(logger, "fetch"))

	records, err := store.OpenRecordStore(cfg.CSVPath(), logging.ForComponent(logger, "records"))
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	documents, err := store.NewDocumentStore(cfg.DocumentsDir(), logging.ForComponent(logger, "documents"))
	if err != nil {
		return nil, fmt.Errorf("init document store: %w", err)
	}
	checkpoint := store.NewCheckpointStore(cfg.CheckpointPath(), clock.WallClock, logging.ForComponent(logger, "checkpoint"))

	return harvest.New(
		harvest.Config{
			IndexBaseURL: cfg.Endpoints.IndexBaseURL,
			StartDate:    cfg.Harvest.StartDate,
			EndDate:      cfg.Harvest.EndDate,
			Formats:      cfg.Harvest.Formats,
			Concurrency:  cfg.Harvest.Concurrency,
			IndexOnly:    cfg.Harvest.IndexOnly,
		},
		fetcher,
		boe.NewNormalizer(logging.ForComponent(logger, "normalizer")),
		records,
		documents,
		checkpoint,
		clock.WallClock,
		logging.ForComponent(logger, "harvest"),
	), nil
}
