// Package webui serves the embedded single-page client and relays its
// POST /toggle to the device.
package webui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Makepad-fr/comuta/internal/toggle"
	"github.com/Makepad-fr/comuta/web"
)

const defaultShutdownTimeout = 5 * time.Second

// Toggler performs one activation. *toggle.Client satisfies it.
type Toggler interface {
	Toggle(ctx context.Context) toggle.Result
}

// Server is the echo app behind `comuta serve`.
type Server struct {
	echo    *echo.Echo
	toggler Toggler
	logger  *slog.Logger
	metrics http.Handler

	shutdownTimeout time.Duration

	// relay outlives browser requests and is cancelled only when shutdown
	// runs out of grace
	relay context.Context
	abort context.CancelFunc
}

type Option func(*Server)

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight relays once its
// context is done. Relays still running after that are cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func New(t Toggler, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, toggler: t, logger: slog.Default(), shutdownTimeout: defaultShutdownTimeout}
	s.relay, s.abort = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "webui")

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	assets := echo.WrapHandler(http.FileServer(http.FS(web.FS)))
	s.echo.GET("/", assets)
	s.echo.GET("/static/*", assets)

	s.echo.POST(toggle.Path, s.handleToggle)
	s.echo.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// handleToggle relays one activation. The browser going away does not cancel
// the device request; only a shutdown that times out does. Responses carry no body: the device's status is
// mirrored, 502 means the device was unreachable, 429 means the drop policy
// skipped this press.
func (s *Server) handleToggle(c echo.Context) error {
	res := s.toggler.Toggle(s.relay)

	switch res.Outcome {
	case toggle.OK, toggle.NotOK:
		return c.NoContent(res.StatusCode)
	case toggle.Skipped:
		return c.NoContent(http.StatusTooManyRequests)
	default:
		return c.NoContent(http.StatusBadGateway)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
// Device requests still pending when the grace period ends are cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	defer s.abort()

	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown grace period over, cancelling device requests", "error", err)
		s.abort()
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
