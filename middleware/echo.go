package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tonkeeper/apicapture/collector"
)

// Echo returns echo middleware that captures every matching request. Errors
// returned by the handler are passed through; an *echo.HTTPError that has not
// been written yet is reported with its own status code.
func Echo(c collector.Capturer, opts Options) echo.MiddlewareFunc {
	o := opts.withDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			if !o.matches(req.URL.Path) {
				return next(ctx)
			}

			start := time.Now()
			body := o.teeRequestBody(req)
			event := o.requestEvent(req)

			handlerErr := next(ctx)

			res := ctx.Response()
			status := res.Status
			if handlerErr != nil && !res.Committed {
				var httpErr *echo.HTTPError
				if errors.As(handlerErr, &httpErr) {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			finishEvent(event, body, status, start)
			c.Capture(event)
			return handlerErr
		}
	}
}
