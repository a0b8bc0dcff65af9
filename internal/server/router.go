// Package server exposes transcript search over HTTP.
package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/BeckettFrey/speech-diarizer/internal/config"
	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

// Router holds all handlers.
type Router struct {
	cfg    *config.Config
	search *Search
}

// NewRouter creates a new router with all handlers.
func NewRouter(cfg *config.Config, search *Search) *Router {
	return &Router{cfg: cfg, search: search}
}

// Setup configures all application routes.
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")
	rt.setupSearchRoutes(v1)
}

func (rt *Router) setupSearchRoutes(g *echo.Group) {
	g.POST("/search", rt.search.Search)
	g.POST("/search/batch", rt.search.SearchBatch)
	g.POST("/transcripts/stats", rt.search.Stats)
}

func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"environment": rt.cfg.Environment,
	})
}

// New builds the Echo instance with middleware and routes. defaults are the
// search options requests start from.
func New(cfg *config.Config, svc *speechmine.Service, defaults speechmine.Options, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if herr := HandleError(logger, c, err); herr != nil {
			logger.Error("http.error_handler", zap.Error(herr))
		}
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http.request",
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: cfg.RequestTimeout,
	}))

	search := NewSearch(svc, defaults, cfg.DataDir, cfg.BatchLimit, logger)
	NewRouter(cfg, search).Setup(e)
	return e
}
