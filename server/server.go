// Package server serves the dashboard, the result files behind it and the
// process metrics.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/config"
	"github.com/usagestats/usagestats/dashboard"
	"github.com/usagestats/usagestats/loader"
	"github.com/usagestats/usagestats/logger"
)

const shutdownTimeout = 10 * time.Second

// ChartLoader loads the dashboard charts against a base URL.
type ChartLoader interface {
	Load(ctx context.Context, baseURL string, requests []charts.Request) []loader.Result
}

type Server struct {
	cfg        config.ServerConfig
	resultsDir string
	title      string
	loader     ChartLoader
	requests   []charts.Request
	log        logger.Logger
	engine     *gin.Engine
}

func New(cfg config.ServerConfig, resultsDir, title string, l ChartLoader, requests []charts.Request, log logger.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		resultsDir: resultsDir,
		title:      title,
		loader:     l,
		requests:   requests,
		log:        log.WithFields(map[string]interface{}{"component": "server"}),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(s.log), Instrument())

	r.GET("/", s.index)
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/results", s.resultsDir)
	if s.cfg.StaticDir != "" {
		r.Static("/static", s.cfg.StaticDir)
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// index loads every chart and renders the page. Charts that fail to load
// leave their container empty; only a page render failure is an error.
func (s *Server) index(c *gin.Context) {
	results := s.loader.Load(c.Request.Context(), s.baseURL(c.Request), s.requests)

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, s.title, results); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "dashboard unavailable")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// baseURL is the configured base URL or the origin the request came in on.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return strings.TrimSuffix(s.cfg.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  config.GetDuration(s.cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(s.cfg.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", map[string]interface{}{"addr": s.cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received, stopping server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
