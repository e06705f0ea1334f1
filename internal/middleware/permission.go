package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

// RequirePermission aborts with 403 unless the authenticated key holds
// perm.  Admin keys pass every check.  It must run after Authenticate.
func RequirePermission(perm model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || !p.Permissions.Has(perm) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":   "forbidden",
					"message": "missing permission: " + string(perm),
				})
			}
			return next(c)
		}
	}
}
