package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

// UsageRecorder stores API usage entries.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, l model.APILog) error
}

// RecordUsage logs every request of an authenticated key: endpoint,
// method, status, latency, client ip and user agent.  Storage failures are
// logged and never change the response.
func RecordUsage(store UsageRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := clock()
			err := next(c)

			p, ok := PrincipalFrom(c)
			if !ok {
				return err
			}
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			req := c.Request()
			entry := model.APILog{
				APIKeyID:       p.KeyID,
				Endpoint:       req.URL.Path,
				Method:         req.Method,
				StatusCode:     status,
				ResponseTimeMs: clock().Sub(start).Milliseconds(),
				IPAddress:      c.RealIP(),
				UserAgent:      req.UserAgent(),
				CreatedAt:      start.UTC(),
			}
			if rerr := store.RecordUsage(context.WithoutCancel(req.Context()), entry); rerr != nil {
				c.Logger().Warnf("usage: record %s %s: %v", entry.Method, entry.Endpoint, rerr)
			}
			return err
		}
	}
}
