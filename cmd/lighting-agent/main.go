package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halviala/als-platform/internal/hierarchy"
	"github.com/halviala/als-platform/internal/lighting"
	"github.com/halviala/als-platform/internal/store"
	"github.com/halviala/als-platform/pkg/config"
	"github.com/halviala/als-platform/pkg/health"
	"github.com/halviala/als-platform/pkg/mqtt"
	"github.com/halviala/als-platform/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting ALS Lighting Agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"sqlite_path", cfg.SQLitePath,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	sampleStore, err := store.Open(cfg.SQLiteDSN(), store.Options{
		MinKelvin: cfg.MinKelvin,
		MaxKelvin: cfg.MaxKelvin,
	}, logger)
	if err != nil {
		logger.Error("Failed to open learned sample store", "error", err)
		os.Exit(1)
	}
	defer sampleStore.Close()

	if err := sampleStore.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure store schema", "error", err)
		os.Exit(1)
	}

	prefs, err := hierarchy.LoadPreferences(cfg.RoomPreferencesPath)
	if err != nil {
		logger.Warn("Room preferences unavailable, all rooms default to intelligent",
			"path", cfg.RoomPreferencesPath, "error", err)
		prefs = &hierarchy.Preferences{}
	}

	agent, err := lighting.NewAgent(cfg, mqttClient, redisClient, sampleStore, prefs, logger)
	if err != nil {
		logger.Error("Failed to create lighting agent", "error", err)
		os.Exit(1)
	}

	healthChecker := health.NewChecker(mqttClient, redisClient, sampleStore, logger)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Lighting agent shutdown complete")
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
