package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tournevent/dispatch/internal/shipping"
	"github.com/tournevent/dispatch/internal/telemetry"
)

// Server is the HTTP server for the shipping service.
type Server struct {
	port          int
	quoter        *shipping.Quoter
	orchestrator  *shipping.Orchestrator
	reconciler    *shipping.Reconciler
	logger        *otelzap.Logger
	metrics       *telemetry.Metrics
	webhookSecret string
}

// Config holds server configuration.
type Config struct {
	Port          int
	WebhookSecret string
}

// New creates a new server instance.
func New(cfg Config, quoter *shipping.Quoter, orchestrator *shipping.Orchestrator, reconciler *shipping.Reconciler, logger *otelzap.Logger) *Server {
	return &Server{
		port:          cfg.Port,
		quoter:        quoter,
		orchestrator:  orchestrator,
		reconciler:    reconciler,
		logger:        logger,
		metrics:       telemetry.NewMetrics(),
		webhookSecret: cfg.WebhookSecret,
	}
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/rates", s.handleRates)
	mux.HandleFunc("POST /api/v1/shipments", s.handleCreateShipment)
	mux.HandleFunc("GET /api/v1/shipments/{id}/label", s.handleLabel)
	mux.HandleFunc("DELETE /api/v1/shipments/{reference}", s.handleCancelShipment)
	mux.HandleFunc("GET /api/v1/tracking/{reference}", s.handleTracking)
	mux.HandleFunc("POST /api/v1/webhooks/shiplogic", s.handleWebhook)

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
