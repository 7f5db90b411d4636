package httpserver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/platform/config"
	"github.com/pscheid92/roomcast/internal/stream"
)

type appService interface {
	Stats() domain.Stats
	Events(ctx context.Context, cursor *int64) iter.Seq[stream.Item]
	Notifications(ctx context.Context, userID string) iter.Seq[stream.Item]
	Stocks(ctx context.Context) iter.Seq[stream.Item]
}

type websocketHandler interface {
	ServeGeneral(w http.ResponseWriter, r *http.Request)
	ServeRoom(w http.ResponseWriter, r *http.Request, room string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app       appService
	websocket websocketHandler
	limits    *ConnectionLimits

	metrics        *metrics.Set
	metricsHandler http.Handler

	healthChecks []HealthCheck
	startTime    time.Time

	// streams is cancelled on shutdown so SSE handlers return and
	// echo.Shutdown does not wait on them until its deadline.
	streams     context.Context
	stopStreams context.CancelFunc
	draining    atomic.Bool
}

type Option func(*Server)

// WithMetrics enables HTTP metrics, rejection counters and the /metrics endpoint.
func WithMetrics(set *metrics.Set, handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = set
		s.metricsHandler = handler
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func NewServer(cfg *config.Config, app appService, websocketHandler websocketHandler, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	streams, stopStreams := context.WithCancel(context.Background())

	srv := &Server{
		echo:        e,
		config:      cfg,
		clock:       clockwork.NewRealClock(),
		app:         app,
		websocket:   websocketHandler,
		streams:     streams,
		stopStreams: stopStreams,
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.startTime = srv.clock.Now()
	srv.limits = NewConnectionLimits(
		srv.clock,
		int64(cfg.MaxWebSocketConnections),
		cfg.MaxConnectionsPerIP,
		cfg.ConnectionRate,
		cfg.ConnectionBurst,
	)
	srv.healthChecks = append([]HealthCheck{
		{Name: "accepting", Check: srv.checkAccepting},
		{Name: "capacity", Check: srv.checkCapacity},
	}, srv.healthChecks...)

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Limits returns the websocket connection limiter.
func (s *Server) Limits() *ConnectionLimits {
	return s.limits
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting work, ends open SSE streams and waits for
// in-flight requests. Hijacked websocket connections are not tracked by
// the HTTP server; closing them is the application's job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.stopStreams()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) connectionMetrics() *metrics.ConnectionMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Connections
}
