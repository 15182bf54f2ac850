package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shizukutanaka/Kifuda/internal/api"
	"github.com/shizukutanaka/Kifuda/internal/assets"
	"github.com/shizukutanaka/Kifuda/internal/config"
	"github.com/shizukutanaka/Kifuda/internal/events"
	"github.com/shizukutanaka/Kifuda/internal/funding"
	"github.com/shizukutanaka/Kifuda/internal/monitoring"
	"github.com/shizukutanaka/Kifuda/internal/registry"
	"github.com/shizukutanaka/Kifuda/internal/storage"
	"github.com/shizukutanaka/Kifuda/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger service",
	Long: `Run the registry, token ledger and funding panel with the HTTP API,
event journal and Prometheus metrics.

Examples:
  # Serve with default config
  kifuda serve

  # Serve with a specific config
  kifuda serve --config /etc/kifuda/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter := events.NewEmitter()

	reg, err := registry.NewAdminRegistry(
		common.HexToAddress(cfg.Registry.Deployer),
		config.BigInt(cfg.Registry.Threshold),
		emitter, logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	ledger := token.NewLedger(
		cfg.Token.Name, cfg.Token.Symbol,
		common.HexToAddress(cfg.Token.Account),
		reg, emitter, logger,
	)

	seed := assets.NewBasicLedger("Seed Asset", "SEED")

	panel, err := funding.NewPanel(funding.Params{
		Account:           common.HexToAddress(cfg.Funding.Account),
		DocURL:            cfg.Funding.DocURL,
		DocHash:           cfg.Funding.DocHash,
		ExchangeRateSeed:  config.BigInt(cfg.Funding.ExchangeRateSeed),
		ExchangeRateOnTop: config.BigInt(cfg.Funding.ExchangeRateOnTop),
		ExchRateDecimals:  cfg.Funding.ExchRateDecimals,
		SeedMaxSupply:     config.BigInt(cfg.Funding.SeedMaxSupply),
		DeployBlock:       cfg.Funding.DeployBlock,
	}, reg, ledger, seed, emitter, logger)
	if err != nil {
		return fmt.Errorf("failed to create funding panel: %w", err)
	}

	journal, err := storage.Open(cfg.Storage.JournalPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open event journal: %w", err)
	}
	defer journal.Close()
	go journal.Run(ctx, emitter.SubscribeAll())

	metrics := monitoring.NewMetrics(logger)
	go metrics.Run(ctx, emitter.SubscribeAll())
	go refreshGauges(ctx, metrics, ledger, reg, panel)

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(api.Config{
			Enabled:      cfg.API.Enabled,
			ListenAddr:   cfg.API.ListenAddr,
			JWTSecret:    cfg.API.JWTSecret,
			AllowOrigins: cfg.API.AllowOrigins,
		}, logger, reg, ledger, panel, journal, metrics, emitter)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	logger.Info("Kifuda started",
		zap.String("token", cfg.Token.Symbol),
		zap.String("journal", cfg.Storage.JournalPath),
		zap.Bool("api", cfg.API.Enabled),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	cancel()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", zap.Error(err))
		}
	}

	logger.Info("Kifuda stopped")
	return nil
}

// refreshGauges keeps the point-in-time gauges aligned with ledger state.
func refreshGauges(ctx context.Context, m *monitoring.Metrics, ledger *token.Ledger, reg *registry.AdminRegistry, panel *funding.Panel) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetTotalSupply(ledger.TotalSupply())
			m.SetWhitelistLength(reg.WLLength())
			m.SetSeedRaised(panel.TotalRaised())
		}
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
