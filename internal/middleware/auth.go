package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/service"
	"github.com/iliyamo/theater-seat-booking/internal/utils"
)

// Verifier checks the two kinds of credentials a client may present.
type Verifier interface {
	VerifyToken(raw string) (model.Principal, error)
	VerifyKey(ctx context.Context, raw string) (model.Principal, error)
}

// Authenticate accepts either an access token or a plain API key:
//
//	Authorization: Bearer <jwt>
//	Authorization: Bearer vk_...
//	Authorization: ApiKey vk_...
//	X-API-Key: vk_...
//
// The resolved principal is stored on the context for later middleware
// and handlers.
func Authenticate(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, isKey := credential(c.Request())
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":   "unauthorized",
					"message": "missing credentials, send Authorization: Bearer <token> or ApiKey <key>",
				})
			}

			var (
				p   model.Principal
				err error
			)
			if isKey {
				p, err = v.VerifyKey(c.Request().Context(), raw)
			} else {
				p, err = v.VerifyToken(raw)
			}
			if errors.Is(err, service.ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
			}
			if err != nil {
				c.Logger().Errorf("auth: verify credentials: %v", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
			}

			SetPrincipal(c, p)
			return next(c)
		}
	}
}

// credential extracts the raw credential and whether it is an API key.
func credential(r *http.Request) (string, bool) {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k, true
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, raw, ok := strings.Cut(auth, " ")
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(scheme) {
	case "apikey":
		return raw, true
	case "bearer":
		return raw, strings.HasPrefix(raw, utils.APIKeyPrefix)
	}
	return "", false
}
