package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"exchangeflow/config"
	"exchangeflow/internal/analyzer"
	"exchangeflow/internal/flow"
	"exchangeflow/logger"
	"exchangeflow/pkg/storage/clickhouse"
	"exchangeflow/pkg/storage/postgres"
	"exchangeflow/pkg/storage/rediscache"
	"exchangeflow/pkg/storage/s3"

	"go.uber.org/zap"
)

func realMain() error {
	// flags + viper config
	cfg, err := loadConfig()
	if isHelp(err) {
		return nil
	}
	if err != nil {
		return err
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := cfg.NetParams()
	if err != nil {
		log.Error("invalid network", zap.Error(err))
		return err
	}

	index, err := flow.LoadExchangeIndex(cfg.ExchangeAddresses, params, log)
	if err != nil {
		log.Error("failed to load exchange addresses", zap.Error(err))
		return err
	}

	opts, closeAll := optionalOutputs(ctx, cfg, log)
	defer closeAll()

	res, err := analyzer.New(cfg, index, log, opts...).Run(ctx)
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		return err
	}

	run := res.Reports.Run
	log.Info("analysis complete",
		zap.String("run_id", run.ID),
		zap.Int("batches_found", run.BatchesFound),
		zap.Int("batches_filtered", run.BatchesFiltered),
		zap.Int("batches_processed", run.BatchesProcessed),
		zap.Int("batches_skipped", run.BatchesSkipped),
		zap.Int64("transactions", run.Transactions),
		zap.Int64("matched_transfers", run.Matched),
		zap.Int("exchanges", len(res.Reports.Summary)),
		zap.Int("charts", len(res.Charts)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)
	return nil
}

// optionalOutputs connects the enabled storage backends. A backend that
// cannot be reached is logged and left out of the run.
func optionalOutputs(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]analyzer.Option, func()) {
	var opts []analyzer.Option
	var closers []func() error

	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment)
		if err != nil {
			log.Warn("postgres disabled", zap.Error(err))
		} else {
			opts = append(opts, analyzer.WithSink(&postgres.Sink{Client: client}))
			closers = append(closers, client.Close)
		}
	}

	if cfg.ClickHouse.Enabled {
		repo, err := clickhouse.NewRepository(ctx, cfg.ClickHouse)
		if err != nil {
			log.Warn("clickhouse disabled", zap.Error(err))
		} else {
			opts = append(opts, analyzer.WithSink(repo))
			closers = append(closers, repo.Close)
		}
	}

	if cfg.Redis.Enabled {
		cache := rediscache.New(cfg.Redis)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis disabled", zap.Error(err))
			cache.Close()
		} else {
			opts = append(opts, analyzer.WithSink(cache))
			closers = append(closers, cache.Close)
		}
	}

	if cfg.S3.Enabled {
		up, err := s3.NewUploader(ctx, cfg.S3, log)
		if err != nil {
			log.Warn("s3 upload disabled", zap.Error(err))
		} else {
			opts = append(opts, analyzer.WithUploader(up))
		}
	}

	return opts, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("close failed", zap.Error(err))
			}
		}
	}
}

func main() {
	// Work around defer not working after os.Exit()
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
