package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqtt-span-bridge/config"
	"mqtt-span-bridge/internal/broker"
	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/metrics"
)

func main() {
	defaultConfig := os.Getenv("SPAN_BRIDGE_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config/config.json"
	}

	configPath := flag.String("config", defaultConfig, "path to config file")

	// Optional override flags
	rulesOverride := flag.String("rules", "", "override rules file path (empty = use config)")
	reloadTopicOverride := flag.String("reload-topic", "", "override reload trigger topic (empty = use config)")
	reloadBrokerOverride := flag.String("reload-broker", "", "override reload trigger side, near or far (empty = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*rulesOverride,
		*reloadTopicOverride,
		*reloadBrokerOverride,
		*metricsAddrOverride,
	)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Create the bridge
	bridge, err := broker.NewBridge(cfg, logger, metricsService)
	if err != nil {
		logger.Fatal("failed to create bridge", "error", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge.Start(ctx)

	logger.Info("mqtt-span-bridge started",
		"config", *configPath,
		"rules", cfg.Rules,
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reloading rules")
			if err := bridge.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down...")

			// Graceful shutdown
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			// Shutdown metrics server if enabled
			if cfg.Metrics.Enabled && metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown metrics server", "error", err)
				}
			}

			// Shutdown the bridge
			cancel()
			bridge.Close()
			return
		}
	}
}
