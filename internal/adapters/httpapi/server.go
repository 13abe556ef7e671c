// Package httpapi serves the hierarchy, document search and statistics over
// HTTP using echo.
package httpapi

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rentcore/internal/adapters/exports"
	"rentcore/internal/core"
)

// Engine is the read side the API is served from.
type Engine interface {
	BuildTree(ctx context.Context, scope string) (core.Forest, error)
	Search(ctx context.Context, scope string, p core.Predicate) ([]core.ScopedDocument, error)
	Stats(ctx context.Context, scope string) (core.StatsSummary, error)
}

// DocumentLinker presigns document download URLs.
type DocumentLinker interface {
	DocumentURL(ctx context.Context, docID string, expiry time.Duration) (string, error)
}

// Options configures a Server. Zero values select defaults.
type Options struct {
	Logger        *zap.Logger
	Registerer    prometheus.Registerer
	Gatherer      prometheus.Gatherer
	MetricsPrefix string
	// Documents enables GET /api/v1/documents/:id/url when set.
	Documents DocumentLinker
	// Exports enables the /api/v1/exports routes when set.
	Exports   exports.Scheduler
	URLExpiry time.Duration
}

// Server is the HTTP front of the engine.
type Server struct {
	echo      *echo.Echo
	engine    Engine
	documents DocumentLinker
	exports   exports.Scheduler
	log       *zap.Logger
	urlExpiry time.Duration
}

// New wires routes and middleware. It fails when the request metrics cannot
// be registered.
func New(engine Engine, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	prefix := opts.MetricsPrefix
	if prefix == "" {
		prefix = "rentcore"
	}
	metrics, err := newHTTPMetrics(reg, prefix)
	if err != nil {
		return nil, err
	}
	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	s := &Server{
		echo:      e,
		engine:    engine,
		documents: opts.Documents,
		exports:   opts.Exports,
		log:       log,
		urlExpiry: expiry,
	}

	e.Use(middleware.Recover())
	e.Use(requestID(log))
	e.Use(metrics.middleware)
	e.Use(requestLogger)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	api.GET("/tree", s.handleTree)
	api.GET("/documents", s.handleDocuments)
	api.GET("/stats", s.handleStats)
	if s.documents != nil {
		api.GET("/documents/:id/url", s.handleDocumentURL)
	}
	if s.exports != nil {
		api.POST("/exports", s.handleExportCreate)
		api.GET("/exports/:id", s.handleExportGet)
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
