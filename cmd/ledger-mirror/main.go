package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pmanager/internal/backend"
	"pmanager/internal/cli"
	"pmanager/internal/config"
	applog "pmanager/internal/log"
	gsheet "pmanager/internal/sheets/google"
	"pmanager/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).ValidateMirror)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting ledger-mirror")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err)
		os.Exit(1)
	}
	if res.AMQP == nil {
		logger.Error("AMQP broker unavailable", "url_set", cfg.AMQPURL != "")
		res.Cleanup()
		os.Exit(1)
	}

	journal, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		JournalSheet:    cfg.GoogleJournalSheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		res.Cleanup()
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleJournalSheet)

	mirror := worker.NewMirrorWorker(res.Store, journal, cfg.MirrorBatchSize, logger)
	sweeper := worker.NewSweeper(mirror, cfg.MirrorInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := sweeper.Stop(ctx); err != nil {
			logger.Error("Sweeper shutdown error", applog.FieldError, err)
		}
	})

	// Failures here are retried by the sweep.
	if err := mirror.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup mirror check", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.AMQP.ConsumeLedgerEvents(gctx, mirror.HandleEventMessage)
	})
	g.Go(func() error {
		return sweeper.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger mirror stopped", applog.FieldError, err)
		_ = sweeper.Stop(context.Background())
		res.Cleanup()
		os.Exit(1)
	}

	<-done
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", applog.FieldError, err)
	}
	logger.Info("Ledger mirror stopped gracefully")
}
