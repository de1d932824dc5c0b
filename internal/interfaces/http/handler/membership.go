package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appmembership "github.com/etribe/portal/internal/application/membership"
	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// MaxDocumentSize caps uploaded member documents
const MaxDocumentSize = 10 << 20

// MembershipHandler exposes member listings, content and admin actions
type MembershipHandler struct {
	BaseHandler
	service *appmembership.Service
	store   session.Store
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(service *appmembership.Service, store session.Store) *MembershipHandler {
	return &MembershipHandler{service: service, store: store}
}

// StatusRequest changes a job applicant's review state
type StatusRequest struct {
	Status membership.ApplicantStatus `json:"status"`
}

// RegisterRoutes registers membership routes
func (h *MembershipHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/members/:status", h.Members)
	rg.GET("/events", h.Events)
	rg.GET("/circulars", h.Circulars)
	rg.GET("/feedback", h.Feedback)
	rg.POST("/attendance", h.MarkAttendance)

	docTypes := rg.Group("/document-types")
	docTypes.GET("", h.DocumentTypes)
	docTypes.POST("", h.CreateDocumentType)
	docTypes.PUT("/:id", h.UpdateDocumentType)
	docTypes.DELETE("/:id", h.DeleteDocumentType)
	rg.POST("/documents", h.UploadDocument)

	rg.GET("/job-applicants", h.JobApplicants)
	rg.PUT("/job-applicants/:id/status", h.UpdateApplicantStatus)

	rg.GET("/certificates/:id", h.Certificate)
	rg.GET("/id-cards/:id", h.IDCard)
	rg.GET("/payments", h.Payments)
}

// Members godoc
// @Summary      List members by status
// @Tags         members
// @Produce      json
// @Param        status path string true "active, inactive, pending or expired"
// @Success      200 {object} dto.Response{data=[]membership.Member}
// @Router       /members/{status} [get]
func (h *MembershipHandler) Members(c *gin.Context) {
	status, err := membership.ParseMemberStatus(c.Param("status"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	members, err := h.service.Members(c.Request.Context(), status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, members)
}

// Events lists events
func (h *MembershipHandler) Events(c *gin.Context) {
	events, err := h.service.Events(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// Circulars lists circulars
func (h *MembershipHandler) Circulars(c *gin.Context) {
	circulars, err := h.service.Circulars(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, circulars)
}

// Feedback lists member feedback
func (h *MembershipHandler) Feedback(c *gin.Context) {
	feedback, err := h.service.Feedback(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, feedback)
}

// MarkAttendance records a member as present or absent at an event
func (h *MembershipHandler) MarkAttendance(c *gin.Context) {
	var mark membership.AttendanceMark
	if !h.bindJSON(c, &mark) {
		return
	}
	h.respondMessage(c)(h.service.MarkAttendance(c.Request.Context(), mark))
}

// DocumentTypes lists document types
func (h *MembershipHandler) DocumentTypes(c *gin.Context) {
	types, err := h.service.DocumentTypes(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, types)
}

// CreateDocumentType adds a document type
func (h *MembershipHandler) CreateDocumentType(c *gin.Context) {
	var form membership.DocumentTypeForm
	if !h.bindJSON(c, &form) {
		return
	}
	h.respondMessage(c)(h.service.CreateDocumentType(c.Request.Context(), form))
}

// UpdateDocumentType renames a document type
func (h *MembershipHandler) UpdateDocumentType(c *gin.Context) {
	var form membership.DocumentTypeForm
	if !h.bindJSON(c, &form) {
		return
	}
	h.respondMessage(c)(h.service.UpdateDocumentType(c.Request.Context(), c.Param("id"), form))
}

// DeleteDocumentType removes a document type
func (h *MembershipHandler) DeleteDocumentType(c *gin.Context) {
	h.respondMessage(c)(h.service.DeleteDocumentType(c.Request.Context(), c.Param("id")))
}

// UploadDocument forwards a multipart upload with fields document_type_id,
// optional user_id and the file under "document".
func (h *MembershipHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxDocumentSize)
	header, err := c.FormFile("document")
	if err != nil {
		h.BadRequest(c, "A document file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.BadRequest(c, "Could not read the uploaded document")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		h.BadRequest(c, "Could not read the uploaded document")
		return
	}

	doc := membership.DocumentUpload{
		DocumentTypeID: c.PostForm("document_type_id"),
		MemberID:       c.PostForm("user_id"),
		FileName:       header.Filename,
		Content:        content,
	}
	h.respondMessage(c)(h.service.UploadDocument(c.Request.Context(), h.store, doc))
}

// JobApplicants lists job applicants
func (h *MembershipHandler) JobApplicants(c *gin.Context) {
	applicants, err := h.service.JobApplicants(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, applicants)
}

// UpdateApplicantStatus moves an applicant to a new review state
func (h *MembershipHandler) UpdateApplicantStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respondMessage(c)(h.service.UpdateApplicantStatus(c.Request.Context(), c.Param("id"), req.Status))
}

// Certificate returns certificate data for a member
func (h *MembershipHandler) Certificate(c *gin.Context) {
	cert, err := h.service.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cert)
}

// IDCard returns ID card data for a member
func (h *MembershipHandler) IDCard(c *gin.Context) {
	card, err := h.service.IDCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, card)
}

// PaymentsResponse lists payments with their total
type PaymentsResponse struct {
	Payments []membership.Payment `json:"payments"`
	Total    string               `json:"total"`
}

// Payments lists payments, optionally for one member via ?user_id=
func (h *MembershipHandler) Payments(c *gin.Context) {
	payments, err := h.service.Payments(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PaymentsResponse{
		Payments: payments,
		Total:    membership.TotalAmount(payments).StringFixed(2),
	})
}

// respondMessage adapts a (message, error) service result to a response.
func (h *MembershipHandler) respondMessage(c *gin.Context) func(string, error) {
	return func(msg string, err error) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Message(c, msg)
	}
}
