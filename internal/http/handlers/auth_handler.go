// Auth and preference HTTP handlers.
//
//   - POST /auth/login          (exchange credentials for a session token)
//   - POST /auth/logout         (admin)
//   - GET  /auth/me             (admin)
//   - GET  /preferences/theme
//   - PUT  /preferences/theme   (set, or toggle with ?toggle=1)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/sysutil"
)

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"s3cret"`
}

// LoginResponse returns the bearer token for admin endpoints.
type LoginResponse struct {
	Username  string    `json:"username" example:"admin"`
	Token     string    `json:"token" example:"7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"`
	CreatedAt time.Time `json:"created_at"`
}

// MeResponse describes the signed-in admin.
type MeResponse struct {
	Username  string    `json:"username" example:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

// ThemeRequest selects a theme.
type ThemeRequest struct {
	Theme string `json:"theme" example:"dark"`
}

// ThemeResponse reports the theme preference.
type ThemeResponse struct {
	Theme string `json:"theme" example:"light"`
}

// Login godoc
// @ID          login
// @Summary     Admin login
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.LoginResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password required")
		return
	}
	s, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, LoginResponse{Username: s.Username, Token: s.Token, CreatedAt: s.CreatedAt})
}

// Logout godoc
// @ID          logout
// @Summary     End the admin session
// @Tags        Auth
// @Security    BearerAuth
// @Success     204  "Logged out"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// Me godoc
// @ID          me
// @Summary     Current admin
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not signed in"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	s, signedIn := h.auth.Current()
	if !signedIn {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not signed in")
		return
	}
	ok(c, http.StatusOK, MeResponse{Username: s.Username, CreatedAt: s.CreatedAt})
}

// GetTheme godoc
// @ID          getTheme
// @Summary     Theme preference
// @Tags        Preferences
// @Produce     json
// @Success     200  {object}  handlers.ThemeResponse
// @Router      /preferences/theme [get]
func (h *Handlers) GetTheme(c *gin.Context) {
	ok(c, http.StatusOK, ThemeResponse{Theme: h.auth.Theme(c.Request.Context())})
}

// PutTheme godoc
// @ID          putTheme
// @Summary     Set or toggle the theme preference
// @Tags        Preferences
// @Accept      json
// @Produce     json
// @Param       toggle  query  bool                   false  "Flip between light and dark"
// @Param       body    body   handlers.ThemeRequest  false  "Theme"
// @Success     200  {object}  handlers.ThemeResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Unknown theme"
// @Router      /preferences/theme [put]
func (h *Handlers) PutTheme(c *gin.Context) {
	ctx := c.Request.Context()
	if sysutil.IsTruthy(c.Query("toggle")) {
		theme, err := h.auth.ToggleTheme(ctx)
		if err != nil {
			failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
			return
		}
		ok(c, http.StatusOK, ThemeResponse{Theme: theme})
		return
	}

	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "theme required")
		return
	}
	if err := h.auth.SetTheme(ctx, req.Theme); err != nil {
		failService(c, err, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ThemeResponse{Theme: h.auth.Theme(ctx)})
}
