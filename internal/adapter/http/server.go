package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/adapter/routeapi"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/tracking"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Navigator runs route analyses and applies them to the session.
// *service.Navigator implements it.
type Navigator interface {
	Analyze(ctx context.Context, q routeapi.Query) (domain.RouteAnalysis, error)
}

// PositionPublisher accepts fixes and failures reported by a device.
// *position.Push implements it.
type PositionPublisher interface {
	Publish(sample domain.PositionSample) error
	Fail(err error) error
}

// Option configures optional collaborators of a Server.
type Option func(*Server)

// WithNavigator enables POST /v1/analysis.
func WithNavigator(n Navigator) Option {
	return func(s *Server) { s.navigator = n }
}

// WithPositions enables POST /v1/positions.
func WithPositions(p PositionPublisher) Option {
	return func(s *Server) { s.positions = p }
}

// WithClock sets the clock used to stamp pushed fixes that carry no timestamp.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// Server exposes the session read model and controls over HTTP, plus
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	session    *tracking.Session
	navigator  Navigator
	positions  PositionPublisher
	validate   *validator.Validate
	upgrader   websocket.Upgrader
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server for session.
func NewServer(addr string, session *tracking.Session, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		session:  session,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/tracking/start", s.handleStartTracking)
		r.Post("/tracking/stop", s.handleStopTracking)
		r.Post("/positions", s.handlePushPosition)

		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/geojson", s.handleAlertsGeoJSON)
		r.Post("/alerts/dismiss", s.handleDismiss)
		r.Delete("/alerts/dismissed", s.handleClearDismissed)
		r.Get("/distance", s.handleDistance)
		r.Put("/hazards", s.handleSetHazards)

		r.Post("/analysis", s.handleAnalyze)
		r.Put("/routes", s.handleApplyRoutes)
		r.Get("/routes", s.handleRoutes)
		r.Post("/routes/select", s.handleSelectRoute)

		r.Get("/stream", s.handleStream)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
