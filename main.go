package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"tradetracker/config"
	"tradetracker/internal/adapters/binanceclient"
	"tradetracker/internal/adapters/logger"
	"tradetracker/internal/adapters/sqlite"
	"tradetracker/internal/app"
	"tradetracker/internal/balance"
	"tradetracker/internal/httpapi"
	"tradetracker/internal/registry"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// Root context canceled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Store (Database Adapter)
	store, err := sqlite.NewStore(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing store")
		}
	}()

	// 4. Initialize Price Feed (Binance Adapter)
	feed, err := binanceclient.New(binanceclient.Config{
		UseTestnet:     cfg.UseTestnet,
		Logger:         appLogger,
		RequestTimeout: cfg.PriceRequestTimeout,
		CacheTTL:       cfg.PriceCacheTTL,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize price feed: %v", err)
	}

	// 5. Initialize Registry and Balance Tracker (seeded from the store)
	reg, err := registry.New(ctx, store, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize trade registry: %v", err)
	}
	tracker, err := balance.New(ctx, store, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize balance tracker: %v", err)
	}

	// 6. Initialize Application Service
	svc, err := app.NewService(cfg, appLogger, feed, reg, tracker)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}

	// 7. Initialize HTTP Server
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:    cfg.HTTPAddr,
		Logger:  appLogger,
		Service: svc,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
	}

	// 8. Run: price poll loop in the background, HTTP server in the foreground
	go func() {
		if err := svc.Start(ctx); err != nil {
			appLogger.Error(ctx, err, "Price poll loop exited with error")
		}
	}()
	if err := server.Run(ctx); err != nil {
		appLogger.Error(ctx, err, "HTTP server exited with error")
		log.Fatalf("FATAL: HTTP server exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
