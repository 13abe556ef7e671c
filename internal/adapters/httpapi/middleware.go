package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rentcore/internal/logging"
)

const headerRequestID = "X-Request-ID"

// requestID tags every request with an id, reusing the caller's when given,
// and stores a request-scoped logger on the echo and request contexts.
func requestID(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(headerRequestID)
			if id == "" {
				id = uuid.NewString()
				req.Header.Set(headerRequestID, id)
			}
			c.Response().Header().Set(headerRequestID, id)
			c.Set("request_id", id)

			log := base.With(zap.String("request_id", id))
			c.Set("logger", log)
			c.SetRequest(req.WithContext(logging.WithContext(req.Context(), log)))
			return next(c)
		}
	}
}

func loggerFrom(c echo.Context) *zap.Logger {
	if log, ok := c.Get("logger").(*zap.Logger); ok {
		return log
	}
	return zap.L()
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := responseStatus(c, err)
		fields := []zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		log := loggerFrom(c)
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
		return err
	}
}

// responseStatus is the status the client will see. Errors returned by the
// handler are rendered by the error handler after the middleware chain.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer, prefix string) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *httpMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start).Seconds()

		method := c.Request().Method
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(responseStatus(c, err))

		m.requests.WithLabelValues(method, path, status).Inc()
		m.duration.WithLabelValues(method, path, status).Observe(duration)
		return err
	}
}
