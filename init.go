package main

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"

	"github.com/tournevent/dispatch/internal/config"
	"github.com/tournevent/dispatch/internal/store"
	"github.com/tournevent/dispatch/internal/store/memorders"
	"github.com/tournevent/dispatch/internal/store/pgorders"
	"github.com/tournevent/dispatch/internal/telemetry"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

func initGateway(cfg *config.Config, logger *otelzap.Logger) *shiplogic.Client {
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	return shiplogic.New(shiplogic.Config{
		APIKey:  cfg.ShiplogicAPIKey,
		BaseURL: cfg.EffectiveBaseURL(),
		Sandbox: cfg.ShiplogicSandbox,
		UseMock: cfg.ShiplogicUseMock,
	}, logger, tracer)
}

// initOrderStore picks PostgreSQL when DATABASE_URL is set, otherwise
// the in-memory store. The returned close function is a no-op for the
// in-memory case.
func initOrderStore(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (store.OrderStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory order store")
		return memorders.New(), func() {}, nil
	}

	pg, err := pgorders.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}

	logger.Info("Connected to PostgreSQL order store")
	return pg, pg.Close, nil
}
