package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"finreport/internal/api"
	"finreport/internal/avatar"
	"finreport/internal/cache"
	"finreport/internal/cli"
	"finreport/internal/config"
	apphttp "finreport/internal/http"
	"finreport/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	cli.RequireServerConfig(cfg)
	logger := cli.SetupLogger(cfg.LogLevel, "app")

	aliases, err := config.LoadTypeAliases(cfg.TypeAliasesFile)
	if err != nil {
		logger.Error("Failed to load type aliases", "error", err, "path", cfg.TypeAliasesFile)
		os.Exit(1)
	}

	backendAPI := api.NewClient(api.Config{
		BaseURL: cfg.BackendAPIURL,
		Timeout: cfg.BackendTimeout,
		Aliases: aliases,
	})

	infra := cli.InitBackend(context.Background(), logger.Logger, cfg)

	reports := services.NewReportService(backendAPI, services.ReportOptions{
		Source:    cfg.ReportSource,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})
	archives := services.NewArchiveService(reports, infra.Store, infra.Publisher())
	expenses := services.NewExpenseService(backendAPI, reports)
	avatars := avatar.NewService(cfg.CacheSize, 24*time.Hour)

	caches := cache.NewManager()
	for _, c := range reports.Caches() {
		caches.Register(c)
	}
	caches.Register(avatars.Cache())
	caches.StartCleanup(10 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:     backendAPI,
		Reports:  reports,
		Archives: archives,
		Expenses: expenses,
		Avatars:  avatars,
		Ready:    readiness(infra.Store),
		Logger:   logger.WithComponent("http"),

		TokenSecret: []byte(cfg.JWTSecret),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := infra.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting finreport server",
		"port", cfg.Port,
		"backend_api", cfg.BackendAPIURL,
		"report_source", cfg.ReportSource,
		"archive_backend", cfg.ArchiveBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// readiness pings the archive store when it supports it.
func readiness(store any) func(context.Context) error {
	p, ok := store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Archive store ping failed", "error", err)
			return err
		}
		return nil
	}
}
