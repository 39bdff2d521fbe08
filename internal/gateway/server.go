// Package gateway is the HTTP surface of the kernel: the orchestration
// endpoint, aggregated health, Prometheus metrics, a live timeline websocket,
// and the in-process rag and memory tools exposed under the fleet's tool
// service contract.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/storage"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Orchestrator is the kernel surface the gateway calls.
type Orchestrator interface {
	Orchestrate(ctx context.Context, req models.OrchestrateRequest) (*models.OrchestrateResponse, error)
}

// EventStream is the timeline surface the websocket endpoint subscribes to.
type EventStream interface {
	Subscribe(sessionID string) (<-chan models.TimelineEvent, func())
}

// Config assembles a Server.
type Config struct {
	// Host and Port form the listen address.
	Host string
	Port int

	// Kernel handles orchestration requests. Required.
	Kernel Orchestrator

	// Registry serves health aggregation and the in-process tool endpoints.
	// Required.
	Registry *toolclient.Registry

	// Timeline feeds the websocket stream. Optional; without it the
	// endpoint reports unavailable.
	Timeline EventStream

	// DB is pinged by the health endpoint. Optional.
	DB *storage.DB

	// ReadTimeout and WriteTimeout bound one request. WriteTimeout must
	// cover the slowest plan execution.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout bounds the drain on Close.
	ShutdownTimeout time.Duration

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Server is the kernel's HTTP front.
type Server struct {
	cfg      Config
	kernel   Orchestrator
	registry *toolclient.Registry
	timeline EventStream
	db       *storage.DB
	logger   *slog.Logger
	metrics  *observability.Metrics

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer builds the server and its route table.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Kernel == nil {
		return nil, fmt.Errorf("gateway: kernel is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("gateway: tool registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		kernel:   cfg.Kernel,
		registry: cfg.Registry,
		timeline: cfg.Timeline,
		db:       cfg.DB,
		logger:   cfg.Logger.With("component", "gateway"),
		metrics:  cfg.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Loopback-only service; the fleet runs on one host.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orchestrate", s.handleOrchestrate)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /timeline/ws", s.handleTimelineWS)
	mux.HandleFunc("POST /rag/{action}", s.toolHandler("rag"))
	mux.HandleFunc("POST /memory/{action}", s.toolHandler("memory"))
	mux.HandleFunc("POST /llm/{action}", s.toolHandler("llm"))
	if s.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return s.withMiddleware(mux)
}

// ListenAndServe blocks until the listener fails or Close drains the server.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close drains in-flight requests within the shutdown timeout.
func (s *Server) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("gateway draining")
	return s.httpServer.Shutdown(ctx)
}
