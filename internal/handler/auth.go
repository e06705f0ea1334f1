package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

// AuthHandler exchanges API keys for access tokens and lets administrators
// issue new keys.
type AuthHandler struct {
	Auth *service.Authenticator
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(a *service.Authenticator) *AuthHandler {
	return &AuthHandler{Auth: a}
}

type tokenRequest struct {
	APIKey string `json:"api_key"`
}

// Token handles POST /v1/auth/token.  The key is read from the body or,
// when the body has none, from the X-API-Key header.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
	}
	if key == "" {
		return badRequest(c, "api_key is required")
	}

	grant, err := h.Auth.IssueToken(c.Request().Context(), key)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

type createKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	RateLimit   int      `json:"rate_limit"`
}

// CreateKey handles POST /v1/admin/keys.  The plain key is part of this
// response only; it cannot be recovered later.
func (h *AuthHandler) CreateKey(c echo.Context) error {
	var req createKeyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	perms := model.ParsePermissions(strings.Join(req.Permissions, ","))
	issued, err := h.Auth.CreateKey(c.Request().Context(), strings.TrimSpace(req.Name), perms, req.RateLimit)
	if err != nil {
		return fail(c, err)
	}
	c.Logger().Infof("api key %s (%s) issued", issued.ID, issued.Name)
	return c.JSON(http.StatusCreated, issued)
}
