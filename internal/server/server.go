// Package server exposes the operational HTTP surface: health and
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/convohub/convo-gateway/internal/config"
	"github.com/convohub/convo-gateway/internal/store"
)

// ProviderStatus reports whether a generation provider can be used.
type ProviderStatus interface {
	HasCredentialed() bool
}

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	backing    store.Backing
	sessions   *store.Store
	providers  ProviderStatus
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	Sessions  int                      `json:"sessions"`
	Timestamp string                   `json:"timestamp"`
}

// ServiceHealth represents a service health status
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// New creates a new HTTP server
func New(cfg *config.Config, backing store.Backing, sessions *store.Store, providers ProviderStatus, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		backing:   backing,
		sessions:  sessions,
		providers: providers,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	s.logger.Info("http server listening", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]ServiceHealth{}

	redis := ServiceHealth{Healthy: true}
	if s.backing == nil {
		redis = ServiceHealth{Healthy: false, Message: "no durable backing configured"}
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.backing.Ping(ctx); err != nil {
			redis = ServiceHealth{Healthy: false, Message: err.Error()}
		}
	}
	services["redis"] = redis

	prov := ServiceHealth{Healthy: s.providers.HasCredentialed()}
	if !prov.Healthy {
		prov.Message = "no generation provider with a credential"
	}
	services["providers"] = prov

	status := "ok"
	if !prov.Healthy {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:    status,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Services:  services,
		Sessions:  s.sessions.Len(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
