package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/dittovault/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is a dependency probed by the readiness endpoint. The
// metadata indexes implement it.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Healthcheck(ctx context.Context) error { return f(ctx) }

// Server exposes Prometheus metrics and health probes over HTTP.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics
//   - GET /health/live: 200 while the process runs
//   - GET /health/ready: 200 when every registered check passes, 503 otherwise
//   - GET /: index page
type Server struct {
	server       *http.Server
	port         int
	checks       map[string]HealthChecker
	checkTimeout time.Duration
	version      string
	shutdownOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. Default: 9090
	Port int

	// Registry to expose. Nil means the global registry.
	Registry *prometheus.Registry

	// CheckTimeout bounds each readiness check. Default: 2s
	CheckTimeout time.Duration

	// Version is reported by the health endpoints.
	Version string
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 9090
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 2 * time.Second
	}
	if c.Registry == nil {
		c.Registry = GetRegistry()
	}
}

// NewServer creates a stopped metrics server. checks maps a dependency name
// to its probe.
func NewServer(config ServerConfig, checks map[string]HealthChecker) *Server {
	config.applyDefaults()

	s := &Server{
		port:         config.Port,
		checks:       checks,
		checkTimeout: config.CheckTimeout,
		version:      config.Version,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.routes(config.Registry),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		logger.Debug("Metrics endpoint registered at /metrics")
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
		logger.Debug("Metrics collection disabled")
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", s.handleLive)
		r.Get("/ready", s.handleReady)
	})

	r.Get("/", s.handleIndex)
	return r
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

const (
	statusOK   = "ok"
	statusFail = "fail"
)

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Checks:    make(map[string]checkResult, len(s.checks)),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
		err := s.checks[name].Healthcheck(ctx)
		cancel()

		if err != nil {
			resp.Status = statusFail
			resp.Checks[name] = checkResult{Status: statusFail, Message: err.Error()}
			logger.Warn("Readiness check %s failed: %v", name, err)
			continue
		}
		resp.Checks[name] = checkResult{Status: statusOK}
	}

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>DittoVault</title>
    <style>
        body { font-family: sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        .info { background: #f0f0f0; padding: 15px; border-radius: 5px; margin: 20px 0; }
    </style>
</head>
<body>
    <h1>DittoVault</h1>
    <div class="info">
        <p><a href="/metrics">/metrics</a> Prometheus metrics</p>
        <p><a href="/health/live">/health/live</a> liveness probe</p>
        <p><a href="/health/ready">/health/ready</a> readiness probe</p>
    </div>
    <p>Scrape <code>http://&lt;host&gt;:%d/metrics</code></p>
</body>
</html>`, s.port)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves until ctx is cancelled or the listener fails. Cancellation
// triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Metrics server shutdown signal received")
		// The cancelled ctx would abort shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
		} else {
			logger.Info("Metrics server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the bound address once Start is listening, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
