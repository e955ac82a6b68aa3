// Package http is the management façade. It is stateless: every request
// re-reads live breaker, cache, and metric state, so responses always reflect
// the most recently completed mutation.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/slovo-lang/slovo/internal/api/middleware"
	"github.com/slovo-lang/slovo/internal/loader"
	"github.com/slovo-lang/slovo/internal/logging"
	"github.com/slovo-lang/slovo/internal/metrics"
	"github.com/slovo-lang/slovo/internal/resilience"
)

// Options wires the server to the live components it reports on.
type Options struct {
	Logger   *logging.Logger
	Metrics  *metrics.Collector
	Breakers *resilience.Manager
	Loader   *loader.Loader
	Registry *prometheus.Registry // nil disables the Prometheus endpoint
	Version  string
}

// Server serves health, readiness, and metrics over HTTP.
type Server struct {
	log      *logging.Logger
	col      *metrics.Collector
	breakers *resilience.Manager
	ldr      *loader.Loader
	registry *prometheus.Registry
	version  string
	router   *gin.Engine

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	stopped  bool
}

// NewServer builds the management server and its routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(nil)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	s := &Server{
		log:      opts.Logger,
		col:      opts.Metrics,
		breakers: opts.Breakers,
		ldr:      opts.Loader,
		registry: opts.Registry,
		version:  opts.Version,
		router:   router,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/health/ready", s.handleReady)
	router.GET("/metrics", s.handleMetrics)
	if s.ldr != nil {
		router.GET("/statistics", s.handleStatistics)
	}
	if s.registry != nil {
		router.GET("/metrics/prometheus", gin.WrapH(
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
		))
	}
	return s
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. Port 0 selects an
// ephemeral port; the bound port is returned.
func (s *Server) Start(port int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return 0, fmt.Errorf("management server already started")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, fmt.Errorf("bind management port %d: %w", port, err)
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.router}
	s.stopped = false

	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("management server terminated", zap.Error(err))
		}
	}()

	bound := listener.Addr().(*net.TCPAddr).Port
	s.log.Info("management server listening", zap.Int("port", bound))
	return bound, nil
}

// Stop closes the listener and drains in-flight requests. Idempotent against
// double-stop.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	alreadyStopped := s.stopped
	s.stopped = true
	s.mu.Unlock()

	if srv == nil || alreadyStopped {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleMetrics serves the full numeric snapshot.
func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.col.Read())
}

// handleStatistics reports the live module cache.
func (s *Server) handleStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.ldr.Statistics())
}
