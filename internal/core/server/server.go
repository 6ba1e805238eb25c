// Package server assembles the HTTP surface and runs it until the context ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/config"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/health"
	middleware "github.com/mohammed-shakir/terrai-alerts/internal/core/middleware"
)

// Routes are the handlers mounted next to the alert API. Metrics may be nil.
type Routes struct {
	API     http.Handler
	Ready   http.Handler
	Metrics http.Handler
}

func Handler(cfg config.Config, logger *slog.Logger, routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/healthz", health.Liveness())
	if routes.Ready != nil {
		r.Method(http.MethodGet, "/readyz", routes.Ready)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/"
	}
	r.Mount(prefix, routes.API)
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, routes Routes) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(cfg, logger, routes),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
