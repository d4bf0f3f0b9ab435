package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/internal/config"
	collector_middleware "github.com/tonkeeper/apicapture/internal/middleware"
	"github.com/tonkeeper/apicapture/internal/utils"
	"golang.org/x/exp/slices"
)

// SkipRateLimitsByToken reports whether the request carries a bearer token
// listed in RATE_LIMITS_BY_PASS_TOKEN.
func SkipRateLimitsByToken(request *http.Request) bool {
	if request == nil {
		return false
	}
	authorization := request.Header.Get("Authorization")
	if authorization == "" {
		return false
	}
	token := strings.TrimPrefix(authorization, "Bearer ")
	if slices.Contains(config.Config.RateLimitsByPassToken, token) {
		TokenUsageMetric.WithLabelValues(token).Inc()
		return true
	}
	return false
}

// ConnectionsLimitMiddleware limits concurrent requests per client IP.
func ConnectionsLimitMiddleware(counter *collector_middleware.ConnectionsLimiter, skipper func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			release, err := counter.LeaseConnection(c.Request())
			if err != nil {
				return c.JSON(utils.HttpResError(err.Error(), http.StatusTooManyRequests))
			}
			defer release()
			return next(c)
		}
	}
}

// LogrusLoggerMiddleware logs each request through logrus so echo output
// matches the rest of the service.
func LogrusLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			err := next(c)

			latency := time.Since(start)

			fields := logrus.Fields{
				"remote_ip":  c.RealIP(),
				"host":       req.Host,
				"method":     req.Method,
				"uri":        req.RequestURI,
				"status":     res.Status,
				"latency":    latency.String(),
				"latency_ms": latency.Milliseconds(),
				"bytes_in":   req.Header.Get("Content-Length"),
				"bytes_out":  res.Size,
			}

			if ua := req.UserAgent(); ua != "" {
				fields["user_agent"] = ua
			}

			if id := req.Header.Get(echo.HeaderXRequestID); id != "" {
				fields["request_id"] = id
			}

			logrus.WithFields(fields).Info()

			return err
		}
	}
}
