package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tiburcios-stuff/bling-adapter/internal/api"
	"github.com/tiburcios-stuff/bling-adapter/internal/bling"
	"github.com/tiburcios-stuff/bling-adapter/internal/dashboard"
	"github.com/tiburcios-stuff/bling-adapter/internal/rate"
	"github.com/tiburcios-stuff/bling-adapter/internal/registry"
	"github.com/tiburcios-stuff/bling-adapter/pkg/config"
	"github.com/tiburcios-stuff/bling-adapter/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [bling-adapter]...")

	// --- Rate limiter (Bling enforces per-minute quotas per integration) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})

	// --- Bling HTTP client ---
	client := bling.NewClient(logg.Desugar(), rateMgr, bling.Endpoints{
		TokenURL:  cfg.TokenURL,
		AuthURL:   cfg.AuthURL,
		OrdersURL: cfg.OrdersURL,
	},
		bling.WithRefreshPolicy(cfg.RefreshMaxAttempts, cfg.RefreshBaseDelay),
		bling.WithHTTPTimeout(cfg.HTTPTimeout),
	)

	// --- Account registry (seeded by the bootstrap utility) ---
	reg := registry.New(cfg.RegistryPath)

	// --- Dashboard service ---
	svc, err := dashboard.New(logg.Desugar(), client, reg, dashboard.Options{
		RedirectURI:    cfg.RedirectURI,
		PageSize:       cfg.PageSize,
		MaxPages:       cfg.MaxPages,
		ResultCacheTTL: cfg.ResultCacheTTL,
	})
	if err != nil {
		logg.Fatalw("failed to init dashboard service", "error", err)
	}

	if len(svc.Accounts()) == 0 {
		logg.Warnw("no accounts in registry; run bling-bootstrap to authorize one",
			"registry", cfg.RegistryPath)
	}

	// --- Fiber HTTP server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logg.Desugar(), svc)
	api.RegisterRoutes(app, reg, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[bling-adapter] running",
		"env", cfg.Env,
		"registry", cfg.RegistryPath,
		"accounts", len(svc.Accounts()))

	<-ctx.Done()
	logg.Info("shutting down [bling-adapter]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
}
