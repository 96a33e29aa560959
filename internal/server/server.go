// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline over HTTP. It is a thin adapter:
// request decoding, per-IP rate limiting, and mapping pipeline errors onto
// status codes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/verity/internal/metrics"
	"github.com/pdiddy/verity/internal/pipeline"
	"github.com/pdiddy/verity/pkg/types"
)

// Verifier runs a claim. *pipeline.Pipeline implements it.
type Verifier interface {
	Run(ctx context.Context, raw string, opts pipeline.Options) (pipeline.Outcome, error)
}

// Server serves the verification API.
type Server struct {
	verifier Verifier
	limiter  *ipLimiter
	metrics  *metrics.Recorder
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	engine   *gin.Engine
}

// New builds the router. gatherer backs /metrics; nil omits the endpoint.
// A zero cfg.RateLimit disables rate limiting.
func New(v Verifier, cfg types.ServerConfig, rec *metrics.Recorder, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		verifier: v,
		metrics:  rec,
		gatherer: gatherer,
		logger:   logger,
	}
	if cfg.RateLimit > 0 && cfg.RateWindow > 0 {
		s.limiter = newIPLimiter(cfg.RateLimit, cfg.RateWindow)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	// Rate limiting keys on the peer address, not forwarded headers.
	_ = r.SetTrustedProxies(nil)

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/verify", s.rateLimit(), s.handleVerify)

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.Request(route, c.Writer.Status())
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
