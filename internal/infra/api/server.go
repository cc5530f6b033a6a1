package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/api/apiv1"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server owns the HTTP listener: global middleware, /health, /metrics and the v1 routes.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(cfg config.HTTPConfig, v1 apiv1.ServerInterface, auth *apiv1.Authenticator, checks map[string]HealthCheck, logger *zerolog.Logger) *Server {
	log := logging.OrNop(logger)
	r := chi.NewRouter()

	r.Get("/health", healthHandler(checks, log))
	r.Handle("/metrics", metrics.Handler())

	var identify func(http.Handler) http.Handler
	if auth != nil {
		identify = auth.Identify
	}
	apiv1.RegisterAPIV1(r, v1, identify)

	handler := Chain(r, TraceID(), RequestLog(log), Recover(log), Timeout(cfg.RequestTimeout))
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the full middleware chain, mostly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start blocks until the listener stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func healthHandler(checks map[string]HealthCheck, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Str("check", name).Msg("health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(name + " unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
