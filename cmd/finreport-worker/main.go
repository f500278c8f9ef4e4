package main

import (
	"context"
	"errors"
	"time"

	"finreport/internal/cli"
	"finreport/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, "worker")

	logger.Info("Starting finreport-worker")
	if !cfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exports stay in memory")
	}

	infra := cli.InitBackend(context.Background(), logger.Logger, cfg)
	syncWorker := worker.NewSyncWorker(infra.Store, infra.Exporter, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
	})

	// process archives whose messages were missed while the worker was down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if infra.Broker != nil {
		go func() {
			err := infra.Broker.ConsumeReportSync(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed, relying on periodic sweep", "error", err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no broker available")
	}

	go syncWorker.Run(ctx, cfg.SyncInterval)

	cli.WaitForShutdown(ctx, done)
	if err := infra.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
