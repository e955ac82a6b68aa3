package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	managementhttp "github.com/slovo-lang/slovo/internal/api/http"
	"github.com/slovo-lang/slovo/internal/compiler"
	"github.com/slovo-lang/slovo/internal/config"
	"github.com/slovo-lang/slovo/internal/loader"
	"github.com/slovo-lang/slovo/internal/logging"
	"github.com/slovo-lang/slovo/internal/metrics"
)

const version = "0.3.0"

func main() {
	entry := flag.String("entry", "", "Entry module to load on startup")
	base := flag.String("base", "", "Resolution base directory (overrides SLOVO_BASE_URL)")
	port := flag.Int("port", -1, "Management port, 0 for ephemeral (overrides SLOVO_MANAGEMENT_PORT)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *base != "" {
		cfg.Resolution.BaseURL = *base
	}
	if *port >= 0 {
		cfg.Management.Port = *port
	}

	var logger *logging.Logger
	switch {
	case !cfg.Features.Logger:
		logger = logging.NewNop()
	case cfg.Logging.Development:
		logger = logging.NewDevelopment()
	default:
		logger = logging.NewDefault()
	}
	defer func() { _ = logger.Sync() }()

	var registry *prometheus.Registry
	if cfg.Features.Metrics {
		registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(registry)

	ldr, err := loader.New(cfg, compiler.Passthrough{}, collector, logger.Component("loader"))
	if err != nil {
		log.Fatalf("failed to create module loader: %v", err)
	}

	if result := ldr.Validate(); !result.IsValid {
		for _, msg := range result.Errors {
			logger.Error("invalid configuration", zap.String("error", msg))
		}
		os.Exit(1)
	}

	server := managementhttp.NewServer(managementhttp.Options{
		Logger:   logger.Component("management"),
		Metrics:  collector,
		Breakers: ldr.Breakers(),
		Loader:   ldr,
		Registry: registry,
		Version:  version,
	})
	boundPort, err := server.Start(cfg.Management.Port)
	if err != nil {
		log.Fatalf("failed to start management server: %v", err)
	}
	logger.Info("slovo loader up",
		zap.String("version", version),
		zap.Int("management_port", boundPort),
	)

	if *entry != "" {
		go func() {
			if _, err := ldr.Load(context.Background(), *entry); err != nil {
				logger.Error("entry module load failed",
					zap.String("entry", *entry),
					zap.Error(err),
				)
				return
			}
			stats := ldr.Statistics()
			logger.Info("entry module loaded",
				zap.String("entry", *entry),
				zap.Int("modules", stats.TotalModules),
				zap.Int("dependencies", stats.TotalDependencies),
			)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ldr.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("management server stop failed", zap.Error(err))
	}
}
