package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"cinecat/internal/config"
	"cinecat/internal/logging"
	"cinecat/internal/server"
	"cinecat/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "./configs/cinecat.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger.Slog())

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	shutdownTelemetry, err := telemetry.Init(bgCtx, cfg.Telemetry.ServiceName, version, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	srv, err := server.NewBuilder(cfg, logger).Build(bgCtx)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	go func() {
		logger.Info("listening", "address", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down gracefully")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := shutdownTelemetry(ctx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}
}
