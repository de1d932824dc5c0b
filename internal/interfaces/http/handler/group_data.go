package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/etribe/portal/internal/application/groupdata"
)

// GroupDataHandler exposes the cached organisation settings
type GroupDataHandler struct {
	BaseHandler
	service *groupdata.Service
}

// NewGroupDataHandler creates a new group data handler
func NewGroupDataHandler(service *groupdata.Service) *GroupDataHandler {
	return &GroupDataHandler{service: service}
}

// RegisterRoutes registers group data routes
func (h *GroupDataHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/group-data")
	g.GET("", h.Get)
	g.GET("/status", h.Status)
	g.POST("/refresh", h.Refresh)
}

// Get returns the group data, fetching when the cache is stale. A failed
// fetch still answers 200 when an earlier record exists; the error is then
// visible through Status.
func (h *GroupDataHandler) Get(c *gin.Context) {
	data, err := h.service.Get(c.Request.Context())
	if err != nil && h.service.Status().FetchedAt == nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// Status returns data, fetch time, loading flag and last error
func (h *GroupDataHandler) Status(c *gin.Context) {
	h.Success(c, h.service.Status())
}

// Refresh forces a refetch
func (h *GroupDataHandler) Refresh(c *gin.Context) {
	data, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}
