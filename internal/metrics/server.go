// ABOUTME: HTTP surface for metrics and stream status
// ABOUTME: Serves /metrics, /healthz and /status with chi
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sinetone/sinetone/internal/version"
	"go.uber.org/zap"
)

// Status is the JSON body of /status
type Status struct {
	Version      string  `json:"version"`
	ID           string  `json:"id"`
	State        string  `json:"state"`
	SampleRate   int     `json:"sample_rate"`
	Channels     int     `json:"channels"`
	BufferSize   int     `json:"buffer_size"`
	Callbacks    uint64  `json:"callbacks"`
	Frames       uint64  `json:"frames"`
	Late         uint64  `json:"late"`
	LastRenderMs float64 `json:"last_render_ms"`
	Error        string  `json:"error,omitempty"`
}

// Server exposes the metrics registry and stream status over HTTP
type Server struct {
	metrics *Metrics
	logger  *zap.Logger
	server  *http.Server
	ln      net.Listener
}

// NewServer creates a server for m
func NewServer(m *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{metrics: m, logger: logger}
}

// Router returns the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Get("/status", s.status)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	s.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	src := s.metrics.Source()
	if src == nil {
		http.Error(w, "no stream", http.StatusServiceUnavailable)
		return
	}

	stats := src.Stats()
	format := src.Format()
	body := Status{
		Version:      version.String(),
		ID:           stats.ID,
		State:        stats.State.String(),
		SampleRate:   format.SampleRate,
		Channels:     format.Channels,
		BufferSize:   src.BufferSize(),
		Callbacks:    stats.Callbacks,
		Frames:       stats.Frames,
		Late:         stats.Late,
		LastRenderMs: float64(stats.LastRender) / float64(time.Millisecond),
	}
	if stats.Err != nil {
		body.Error = stats.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encode status", zap.Error(err))
	}
}
