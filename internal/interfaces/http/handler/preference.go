package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/etribe/portal/internal/application/preference"
)

// PreferenceHandler exposes theme and notification read state
type PreferenceHandler struct {
	BaseHandler
	service *preference.Service
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(service *preference.Service) *PreferenceHandler {
	return &PreferenceHandler{service: service}
}

// PreferencesResponse is the stored UI state
type PreferencesResponse struct {
	Theme             preference.Theme `json:"theme"`
	ReadNotifications []string         `json:"read_notifications"`
}

// ThemeRequest sets the theme
type ThemeRequest struct {
	Theme preference.Theme `json:"theme"`
}

// MarkReadRequest marks notifications read
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// RegisterRoutes registers preference routes
func (h *PreferenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/preferences", h.Get)
	rg.PUT("/preferences/theme", h.SetTheme)
	rg.POST("/notifications/read", h.MarkRead)
	rg.DELETE("/notifications/read", h.ClearRead)
}

// Get returns the theme and read notification ids
func (h *PreferenceHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.service.ReadNotifications(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PreferencesResponse{Theme: h.service.Theme(ctx), ReadNotifications: ids})
}

// SetTheme stores the theme
func (h *PreferenceHandler) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.service.SetTheme(c.Request.Context(), req.Theme); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, req)
}

// MarkRead adds ids to the read set and returns the full set
func (h *PreferenceHandler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ids, err := h.service.MarkRead(c.Request.Context(), req.IDs...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ids)
}

// ClearRead forgets every read notification
func (h *PreferenceHandler) ClearRead(c *gin.Context) {
	if err := h.service.ClearReadNotifications(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
