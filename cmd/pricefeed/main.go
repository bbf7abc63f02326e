package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
	"github.com/Bonsai515/pricefeed-go/pkg/server"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
	"github.com/Bonsai515/pricefeed-go/pkg/server/api"
	"github.com/Bonsai515/pricefeed-go/pkg/server/cache"
	"github.com/Bonsai515/pricefeed-go/pkg/server/collector"
	"github.com/Bonsai515/pricefeed-go/pkg/server/sources"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
	"github.com/Bonsai515/pricefeed-go/pkg/version"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("pricefeed-go version %s\n", version.Version)
		os.Exit(0)
	}

	// Load .env if present; real environment wins over file values.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Starting pricefeed-go", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, cfg, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
		// Wait for run to unwind: HTTP drain, WebSocket stop, service close.
		if err := <-errChan; err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
		}
		cancel()
	}

	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	registry, err := tokens.NewRegistry(cfg.Tokens)
	if err != nil {
		return fmt.Errorf("failed to build token registry: %w", err)
	}
	logger.Info("Loaded token registry", "tokens", registry.Len())

	coll := collector.New()

	priceCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build cache: %w", err)
	}

	deps := sources.Deps{
		Registry:  registry,
		Collector: coll,
		Logger:    logger,
	}

	logger.Debug("Available source factories", "factories", sources.List())

	var allSources []sources.Source
	for _, sourceCfg := range cfg.Sources {
		if !sourceCfg.Enabled {
			continue
		}

		logger.Info("Initializing source",
			"type", sourceCfg.Type,
			"name", sourceCfg.Name,
			"weight", sourceCfg.Weight)

		source, err := sources.Create(sourceCfg, deps)
		if err != nil {
			logger.Warn("Failed to create source",
				"type", sourceCfg.Type,
				"name", sourceCfg.Name,
				"error", err.Error())
			continue
		}

		allSources = append(allSources, source)
		logger.Info("Source ready", "source", source.Name(), "weight", source.Weight())
	}

	agg := aggregator.New(cfg.Service.OutlierThreshold, logger)

	service, err := server.NewPriceService(cfg.Service, registry, allSources, agg, priceCache, coll, logger)
	if err != nil {
		return err
	}

	httpServer := api.NewServer(cfg.Server.HTTP.Addr, service, logger)

	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		service.Scheduler().AddPriceSink(wsServer.SendUpdate)

		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()
	}

	service.Start()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	// Start blocks until Stop drains the listener; the remaining teardown
	// happens here so run only returns once everything is released.
	err = httpServer.Start()

	if wsServer != nil {
		wsServer.Stop()
	}
	if closeErr := service.Close(); closeErr != nil {
		logger.Error("Service shutdown error", "error", closeErr)
	}
	return err
}

// buildCache constructs the configured cache backend.
func buildCache(ctx context.Context, cfg *config.Config, logger *logging.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, logger)
	default:
		return cache.NewMemoryCache(), nil
	}
}
