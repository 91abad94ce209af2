package rest

import (
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// observeRequests пишет access log и HTTP-метрики. Ошибку обработчика отдаём
// в HTTPErrorHandler сразу, чтобы в логе и метриках был итоговый статус.
func (s *Server) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req, res := c.Request(), c.Response()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(req.Method, route, res.Status, started)

		entry := s.logger.WithFields(log.Fields{
			"method":     req.Method,
			"route":      route,
			"uri":        req.RequestURI,
			"status":     res.Status,
			"latency_ms": time.Since(started).Milliseconds(),
			"request_id": res.Header().Get(echo.HeaderXRequestID),
		})
		if res.Status >= 500 {
			entry.Warn("http request")
		} else {
			entry.Debug("http request")
		}

		return nil
	}
}
