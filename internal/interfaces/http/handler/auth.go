package handler

import (
	"github.com/gin-gonic/gin"

	appidentity "github.com/etribe/portal/internal/application/identity"
	"github.com/etribe/portal/internal/domain/identity"
)

// AuthHandler handles login, registration and the session
type AuthHandler struct {
	BaseHandler
	authService *appidentity.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *appidentity.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SessionResponse describes the signed-in user
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Expired       bool   `json:"expired"`
	UID           string `json:"uid,omitempty"`
	Role          string `json:"role,omitempty"`
	RoleID        string `json:"role_id,omitempty"`
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.Register)
	auth.POST("/change-password", h.ChangePassword)
	auth.POST("/logout", h.Logout)
	auth.GET("/session", h.Session)
}

// Login godoc
// @Summary      Log in against the membership API
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body identity.LoginForm true "Login credentials"
// @Success      200 {object} dto.Response{data=appidentity.LoginResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var form identity.LoginForm
	if !h.bindJSON(c, &form) {
		return
	}
	result, err := h.authService.Login(c.Request.Context(), form)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Register creates a member account
func (h *AuthHandler) Register(c *gin.Context) {
	var form identity.RegisterForm
	if !h.bindJSON(c, &form) {
		return
	}
	msg, err := h.authService.Register(c.Request.Context(), form)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, msg)
}

// ChangePassword changes the signed-in user's password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var form identity.ChangePasswordForm
	if !h.bindJSON(c, &form) {
		return
	}
	msg, err := h.authService.ChangePassword(c.Request.Context(), form)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, msg)
}

// Logout clears the session
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Session reports the current authentication state. It answers 200 for a
// signed-out user too.
func (h *AuthHandler) Session(c *gin.Context) {
	auth, err := h.authService.Authenticated(c.Request.Context())
	resp := SessionResponse{
		Authenticated: err == nil,
		Expired:       auth.IsAuthenticated() && err != nil,
		UID:           auth.UID,
		RoleID:        auth.RoleID,
	}
	if auth.IsAuthenticated() {
		resp.Role = auth.Role.String()
	}
	h.Success(c, resp)
}
