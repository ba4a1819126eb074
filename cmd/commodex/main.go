package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/commodex/api"
	"github.com/Aidin1998/commodex/internal/config"
	"github.com/Aidin1998/commodex/internal/database"
	"github.com/Aidin1998/commodex/internal/ledger"
	"github.com/Aidin1998/commodex/internal/trading"
	"github.com/Aidin1998/commodex/internal/trading/engine"
	"github.com/Aidin1998/commodex/internal/trading/events"
	"github.com/Aidin1998/commodex/pkg/logger"
	"github.com/Aidin1998/commodex/pkg/models"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "commodex",
		Short:        "Single-asset commodity exchange ledger",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("COMMODEX_CONFIG"), "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	})
	return root
}

// openLedger returns the configured value ledger, seeded, and the database
// behind it when there is one.
func openLedger(ctx context.Context, zapLogger *zap.Logger, cfg config.LedgerConfig) (ledger.ValueLedger, *gorm.DB, error) {
	var (
		l  ledger.ValueLedger
		db *gorm.DB
	)
	if cfg.Driver == "memory" {
		l = ledger.NewMemoryLedger()
	} else {
		var err error
		db, err = database.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		gl, err := ledger.NewGormLedger(zapLogger.Named("ledger"), db)
		if err != nil {
			database.Close(db)
			return nil, nil, err
		}
		l = gl
	}
	if err := ledger.Seed(ctx, l, cfg.Seed); err != nil {
		if db != nil {
			database.Close(db)
		}
		return nil, nil, err
	}
	return l, db, nil
}

func serve(parent context.Context, cfg *config.Config) error {
	startedAt := time.Now()
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zapLogger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	valueLedger, db, err := openLedger(ctx, zapLogger, cfg.Ledger)
	if err != nil {
		zapLogger.Error("Failed to open value ledger", zap.String("driver", cfg.Ledger.Driver), zap.Error(err))
		return err
	}
	if db != nil {
		defer database.Close(db)
	}

	bus := events.NewInMemoryEventBus(zapLogger.Named("events"))
	publisherDone := make(chan error, 1)
	if cfg.Kafka.Enabled() {
		writer := events.NewKafkaWriter(events.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		publisher := events.NewKafkaPublisher(zapLogger.Named("kafka"), writer, cfg.Kafka.Buffer)
		bus.Subscribe(events.AllTopics, publisher.Handle)
		go func() { publisherDone <- publisher.Run(ctx) }()
		zapLogger.Info("Publishing events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	} else {
		publisherDone <- nil
	}

	eng, err := engine.NewEngine(zapLogger.Named("engine"), engine.Config{
		Admin: models.AccountID(cfg.AdminAccount),
		Self:  models.AccountID(cfg.EngineAccount),
	}, valueLedger, bus)
	if err != nil {
		return fmt.Errorf("failed to create trading engine: %w", err)
	}
	tradingSvc, err := trading.NewService(zapLogger.Named("trading"), eng, valueLedger)
	if err != nil {
		return fmt.Errorf("failed to create trading service: %w", err)
	}

	apiServer := api.NewServer(zapLogger, cfg.HTTP, tradingSvc)
	serverErr := make(chan error, 1)
	go func() { serverErr <- apiServer.Start() }()

	select {
	case err = <-serverErr:
		if err != nil {
			zapLogger.Error("API server failed", zap.Error(err))
		}
		stop()
	case <-ctx.Done():
		zapLogger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if shutdownErr := apiServer.Shutdown(shutdownCtx); shutdownErr != nil {
		zapLogger.Error("API server shutdown failed", zap.Error(shutdownErr))
	}
	if pubErr := <-publisherDone; pubErr != nil {
		zapLogger.Error("Event publisher shutdown failed", zap.Error(pubErr))
	}

	zapLogger.Info("Stopped", zap.Duration("uptime", time.Since(startedAt)))
	return err
}
