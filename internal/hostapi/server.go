// Package hostapi exposes the frame state to the browser renderer and
// accepts its pointer, selection and camera input.
package hostapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/model"
	"github.com/signalsfoundry/starfleet/scene"
)

const (
	defaultStreamInterval = time.Second / 30
	shutdownTimeout       = 5 * time.Second
)

// Engine is the frame loop as seen by the host.
type Engine interface {
	Frame() *scene.Frame
	Enqueue(cmd scene.Command) error
}

// ShipLister returns the live registry contents.
type ShipLister interface {
	All() []model.Ship
	Get(id string) (model.Ship, bool)
}

// Server serves the host API.
type Server struct {
	engine         Engine
	ships          ShipLister
	log            logging.Logger
	metrics        http.Handler
	metricsPath    string
	streamInterval time.Duration
	upgrader       websocket.Upgrader
	validate       *validator.Validate
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the request logger base.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsHandler mounts a metrics handler at path.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath, s.metrics = path, h
	}
}

// WithStreamInterval sets how often the frame stream checks for a new
// frame.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// WithOriginCheck replaces the WebSocket origin check. The default accepts
// every origin.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		if fn != nil {
			s.upgrader.CheckOrigin = fn
		}
	}
}

// New builds a server over the engine and the ship registry.
func New(engine Engine, ships ShipLister, opts ...Option) *Server {
	s := &Server{
		engine:         engine,
		ships:          ships,
		log:            logging.Noop(),
		streamInterval: defaultStreamInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/ships", s.listShips)
		r.Get("/ships/{id}", s.getShip)
		r.Get("/frame", s.getFrame)
		r.Post("/pointer", s.postPointer)
		r.Post("/select", s.postSelect)
		r.Post("/interaction", s.postInteraction)
		r.Post("/viewport", s.postViewport)
	})
	r.Get("/ws/frames", s.streamFrames)
	if s.metrics != nil && s.metricsPath != "" {
		r.Method(http.MethodGet, s.metricsPath, s.metrics)
	}
	return r
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           otelhttp.NewHandler(s.Handler(), "hostapi"),
		ReadHeaderTimeout: 5 * time.Second,
		// Streams derive from ctx so they end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.log.Info(ctx, "host API listening", logging.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn(ctx, "host API shutdown", logging.Err(err))
		}
		return ctx.Err()
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, log := logging.WithRequestLogger(r.Context(), s.log)
		ctx = logging.ContextWithLogger(ctx, log)
		w.Header().Set("X-Request-ID", logging.RequestIDFromContext(ctx))
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		log.Debug(ctx, "http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}
