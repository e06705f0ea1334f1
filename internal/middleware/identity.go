package middleware

// identity.go holds the request-scoped principal shared by the auth,
// permission, rate limit and usage middleware.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

const principalKey = "principal"

// SetPrincipal stores the authenticated caller on the context.
func SetPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// callerID is the API key id of the caller, or "anon".
func callerID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.KeyID != "" {
		return p.KeyID
	}
	return "anon"
}
