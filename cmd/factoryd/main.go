package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"auctionfactory/internal/api"
	"auctionfactory/internal/config"
	"auctionfactory/internal/factory"
	"auctionfactory/internal/host"
	"auctionfactory/internal/instance"
	"auctionfactory/internal/metrics"
	"auctionfactory/internal/retry"
	"auctionfactory/internal/storage"
)

func main() {
	fmt.Println("🔨 Starting Auction Factory...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"factory", cfg.FactoryAddress.Hex(),
		"http_port", cfg.HTTPPort,
		"persistent", cfg.DatabaseURL != "",
		"log_level", cfg.LogLevel,
	)

	// 3. Open the ledger
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open ledger: %v", err)
	}
	defer ledger.Close()

	// 4. Resolve the instance module
	image := instance.Image()
	if cfg.InstanceModulePath != "" {
		if image, err = instance.LoadImage(cfg.InstanceModulePath); err != nil {
			log.Fatalf("❌ Failed to load instance module: %v", err)
		}
	}
	deployer := cfg.Deployer()
	if err := deployer.CheckImage(image); err != nil {
		log.Fatalf("❌ Instance module unusable: %v", err)
	}
	slog.Info("Instance module ready",
		"name", instance.Name(),
		"version", instance.Version(),
		"bytes", len(image),
		"deploy_gas", host.DeployGas(image),
	)

	// 5. Wire host and factory
	h := host.New(ledger, deployer, cfg.FactoryAddress)
	f := factory.New(h, image)
	syncGauges(ctx, f)

	// 6. Start API server
	server := api.NewServer(cfg.HTTPPort, f, ledger)
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Failed to start API server: %v", err)
	}

	// 7. Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Warn("Interrupt received, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping API server", "error", err)
	}

	slog.Info("Auction Factory stopped")
}

// openLedger connects to Postgres when DATABASE_URL is set, retrying while
// the database comes up. Otherwise state lives in memory.
func openLedger(ctx context.Context, cfg *config.Config) (storage.Ledger, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory ledger; state is lost on exit")
		return storage.NewMemoryLedger(), nil
	}

	var ledger *storage.PostgresLedger
	err := retry.NewStrategy(cfg.Retry).Execute(ctx, "connect ledger", func(ctx context.Context) error {
		var err error
		ledger, err = storage.NewPostgresLedger(ctx, cfg.DatabaseURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Database connected successfully")
	return ledger, nil
}

// syncGauges seeds the state gauges from persisted state
func syncGauges(ctx context.Context, f *factory.Factory) {
	count, err := f.GetAuctionCount(ctx)
	if err != nil {
		slog.Error("Failed to read auction count", "error", err)
		return
	}
	paused, err := f.IsPaused(ctx)
	if err != nil {
		slog.Error("Failed to read pause flag", "error", err)
		return
	}
	metrics.AuctionCount.Set(float64(count))
	metrics.SetPaused(paused)
	slog.Info("Factory state loaded", "auction_count", count, "paused", paused)
}
