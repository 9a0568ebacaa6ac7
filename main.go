package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tournevent/dispatch/internal/server"
	"github.com/tournevent/dispatch/internal/shipping"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dispatch",
	Short:   "Tournevent Dispatch - order shipping and status reconciliation service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	// Initialize carrier gateway and order storage
	gateway := initGateway(cfg, logger)

	orders, closeStore, err := initOrderStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("order store: %w", err)
	}
	defer closeStore()

	quoter := shipping.NewQuoter(gateway, cfg.CollectionAddress(), shipping.QuoterConfig{
		MarkupPercent:         cfg.ShippingMarkupPercent,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}, logger)

	orchestrator := shipping.NewOrchestrator(gateway, orders, shipping.OrchestratorConfig{
		CollectionAddress:   cfg.CollectionAddress(),
		CollectionContact:   cfg.CollectionContact(),
		DefaultServiceLevel: cfg.DefaultServiceLevel,
	}, logger)

	reconciler := shipping.NewReconciler(gateway, orders, logger)

	logger.Info("Starting Tournevent Dispatch",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
	)

	// Start HTTP server
	srv := server.New(server.Config{
		Port:          cfg.Port,
		WebhookSecret: cfg.ShiplogicWebhookSecret,
	}, quoter, orchestrator, reconciler, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
