// Dual Asset Bot simulator.
// Speaks the dashboard's event stream protocol with synthetic data so the
// client can be developed and tested without the real bot server.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/config"
	"github.com/jqwei/dualstream/internal/logging"
	"github.com/jqwei/dualstream/internal/simulator"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	listenAddr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Simulator.ListenAddr = *listenAddr
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bot simulator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Env),
		zap.String("listen_addr", cfg.Simulator.ListenAddr),
	)

	// Handle shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	srv := simulator.NewServer(&cfg.Simulator, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Simulator error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Bot simulator stopped")
}
