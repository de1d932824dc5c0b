package handler

import (
	"github.com/gin-gonic/gin"

	appmembership "github.com/etribe/portal/internal/application/membership"
	"github.com/etribe/portal/internal/domain/membership"
)

// PaymentMethodHandler manages the locally configured payment methods
type PaymentMethodHandler struct {
	BaseHandler
	methods *appmembership.PaymentMethods
}

// NewPaymentMethodHandler creates a new payment method handler
func NewPaymentMethodHandler(methods *appmembership.PaymentMethods) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

// RegisterRoutes registers payment method routes
func (h *PaymentMethodHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/payment-methods")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List returns all methods, or only enabled ones with ?enabled=true
func (h *PaymentMethodHandler) List(c *gin.Context) {
	list := h.methods.List
	if c.Query("enabled") == "true" {
		list = h.methods.Enabled
	}
	methods, err := list(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, methods)
}

// Create adds a payment method; any id in the body is replaced
func (h *PaymentMethodHandler) Create(c *gin.Context) {
	var m membership.PaymentMethod
	if !h.bindJSON(c, &m) {
		return
	}
	m.ID = ""
	saved, err := h.methods.Save(c.Request.Context(), m)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, saved)
}

// Update replaces the method with the path id
func (h *PaymentMethodHandler) Update(c *gin.Context) {
	var m membership.PaymentMethod
	if !h.bindJSON(c, &m) {
		return
	}
	m.ID = c.Param("id")
	saved, err := h.methods.Save(c.Request.Context(), m)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, saved)
}

// Delete removes a payment method
func (h *PaymentMethodHandler) Delete(c *gin.Context) {
	if err := h.methods.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
