// Agentgovd is the agent governance daemon.
//
// This binary starts the admin HTTP server with full service
// initialization: circuit breaker, retry escalator, static checker,
// policy store, audit trail, and the task lifecycle hook chain.
//
// Configuration is loaded from a YAML file with AGENTGOV_* environment
// overrides. See internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	agentgovd
//
//	# Configure via file and environment
//	AGENTGOV_SERVER_ADDR=:9500 agentgovd -config /etc/agentgov/agentgov.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgov/internal/config"
	httpserver "github.com/fyrsmithlabs/agentgov/internal/http"
	"github.com/fyrsmithlabs/agentgov/internal/logging"
	"github.com/fyrsmithlabs/agentgov/internal/services"
	"github.com/fyrsmithlabs/agentgov/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  agentgovd           Start the governance daemon\n")
			fmt.Fprintf(os.Stderr, "  agentgovd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}

	log.Println("Daemon shutdown complete")
}

func printVersion() {
	fmt.Printf("agentgovd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is canceled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting agentgovd",
		zap.String("addr", cfg.Server.Addr),
		zap.String("policy_dir", cfg.Policy.Dir),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	tel, err := telemetry.New(ctx, &cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry, err := services.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("service shutdown failed", zap.Error(err))
		}
	}()

	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	logger.Info("Services initialized",
		zap.String("breaker_state", string(registry.Breaker().State())),
		zap.Bool("policy_watch", cfg.Policy.Watch),
		zap.Bool("nats_audit", cfg.Audit.NATS.Enabled))

	srv, err := httpserver.NewServer(registry, logger, &httpserver.Config{
		Addr:      cfg.Server.Addr,
		RateLimit: cfg.Server.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
