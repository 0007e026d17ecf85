package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/screamguard/internal/api/middleware"
	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/myaudio"
	"github.com/tphakala/screamguard/internal/notification"
	"github.com/tphakala/screamguard/internal/observability"
	"github.com/tphakala/screamguard/internal/pipeline"
)

// Processor is the part of the detection pipeline the handlers use.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
	Dispatch(ctx context.Context, candidateID string) (*pipeline.EscalationEvent, error)
	DispatchLocation(ctx context.Context, channel string, loc location.Location) (notification.Result, error)
	Pending() int
}

// PointResolver reverse geocodes caller supplied coordinates.
type PointResolver interface {
	FromPoint(ctx context.Context, p location.Point) location.Location
}

// Server is the HTTP server. It owns the echo instance and routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	processor Processor
	resolver  PointResolver
	clips     *myaudio.ClipStore
	metrics   *observability.Metrics

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithProcessor sets the detection pipeline.
func WithProcessor(p Processor) ServerOption {
	return func(s *Server) {
		s.processor = p
	}
}

// WithResolver sets the resolver used by the location endpoints.
func WithResolver(r PointResolver) ServerOption {
	return func(s *Server) {
		s.resolver = r
	}
}

// WithClipStore sets where uploads are written while processed.
func WithClipStore(store *myaudio.ClipStore) ServerOption {
	return func(s *Server) {
		s.clips = store
	}
}

// WithMetrics enables the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	s.log = s.log.Module("api")

	switch {
	case s.processor == nil:
		return nil, fmt.Errorf("api server requires a processor")
	case s.resolver == nil:
		return nil, fmt.Errorf("api server requires a location resolver")
	case s.clips == nil:
		return nil, fmt.Errorf("api server requires a clip store")
	}

	// already checked by Validate
	trust, _ := trustOptions(config.TrustedProxies)

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.IPExtractor = echo.ExtractIPFromXFFHeader(trust...)
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("body_limit", config.BodyLimit),
		logger.Float64("rate_limit", config.RateLimit),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		// Downstream logs carry the request id as trace_id.
		RequestIDHandler: func(c echo.Context, id string) {
			r := c.Request()
			c.SetRequest(r.WithContext(logger.WithTraceID(r.Context(), id)))
		},
	}))

	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, skipProbes))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(securityConfig))

	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))

	if s.config.RateLimit > 0 {
		s.echo.Use(mw.NewRateLimiter(s.config.RateLimit, skipProbes))
	}

	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// skipProbes keeps health checks and scrapes out of logs and rate limits.
func skipProbes(c echo.Context) bool {
	p := c.Path()
	return p == "/health" || p == "/metrics"
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/realtime", s.handleRealtime)

	s.echo.POST("/update-location", s.handleLocation)
	s.echo.POST("/get-browser-location", s.handleLocation)

	s.echo.POST("/send-sms-alert", s.channelHandler(notification.ChannelSMS))
	s.echo.POST("/send-email-alert", s.channelHandler(notification.ChannelEmail))
	s.echo.POST("/initiate-emergency-call", s.channelHandler(notification.ChannelCall))

	s.echo.POST("/escalations/:id/dispatch", s.handleDispatch)
}

// Start serves HTTP requests and blocks until the server is shut down.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.log.Info("starting HTTP server", logger.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests up to
// the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// httpErrorHandler renders echo errors (unknown routes, body limit, rate
// limit) with the same body as handler errors.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = strings.TrimSpace(fmt.Sprint(he.Message))
	}

	resp := NewErrorResponse(message, "")
	if code >= http.StatusInternalServerError {
		s.log.Error("unhandled request error",
			logger.String("correlation_id", resp.CorrelationID),
			logger.String("path", c.Request().URL.Path),
			logger.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, resp)
}
