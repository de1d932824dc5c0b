// Package membership provides the listing and CRUD calls behind the admin
// and user portals.
package membership

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/apiclient"
	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// API endpoints
const (
	EndpointEvents             = "/event/index"
	EndpointCirculars          = "/circular/index"
	EndpointFeedback           = "/feedback/index"
	EndpointMarkAttendance     = "/attendance/mark"
	EndpointDocumentTypes      = "/documentType/index"
	EndpointDocumentTypeCreate = "/documentType/create"
	EndpointDocumentTypeUpdate = "/documentType/update/"
	EndpointDocumentTypeDelete = "/documentType/delete/"
	EndpointDocumentUpload     = "/document/upload"
	EndpointJobApplicants      = "/jobApplicant/index"
	EndpointJobApplicantStatus = "/jobApplicant/update_status/"
	EndpointCertificate        = "/userDetail/certificate/"
	EndpointIDCard             = "/userDetail/id_card/"
	EndpointPayments           = "/payment/index"
)

// APIClient is the subset of apiclient.Client the service depends on
type APIClient interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// Service calls the membership endpoints. Every call requires a session token.
type Service struct {
	api    APIClient
	logger *zap.Logger
}

// NewService creates a new membership service
func NewService(api APIClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, logger: logger}
}

func listFrom[T any](ctx context.Context, s *Service, path string, query map[string]string) ([]T, error) {
	resp, err := s.api.Do(ctx, apiclient.Request{
		Method:      http.MethodGet,
		Path:        path,
		Query:       query,
		RequireAuth: true,
	})
	if err != nil {
		logger.Enrich(ctx, s.logger).Warn("Listing failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return apiclient.DecodeList[T](resp)
}

func (s *Service) mutate(ctx context.Context, method, path string, body any, okMessage string) (string, error) {
	resp, err := s.api.Do(ctx, apiclient.Request{
		Method:      method,
		Path:        path,
		Body:        body,
		RequireAuth: true,
	})
	if err != nil {
		return "", err
	}
	msg, err := resp.Ack(okMessage)
	if err != nil {
		return "", err
	}
	logger.Enrich(ctx, s.logger).Info("Mutation applied", zap.String("method", method), zap.String("path", path))
	return msg, nil
}

// Members lists members with the given status.
func (s *Service) Members(ctx context.Context, status membership.MemberStatus) ([]membership.Member, error) {
	if !status.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	return listFrom[membership.Member](ctx, s, status.Endpoint(), nil)
}

// Events lists events
func (s *Service) Events(ctx context.Context) ([]membership.Event, error) {
	return listFrom[membership.Event](ctx, s, EndpointEvents, nil)
}

// Circulars lists circulars
func (s *Service) Circulars(ctx context.Context) ([]membership.Circular, error) {
	return listFrom[membership.Circular](ctx, s, EndpointCirculars, nil)
}

// Feedback lists member feedback (admin only on the API side).
func (s *Service) Feedback(ctx context.Context) ([]membership.Feedback, error) {
	return listFrom[membership.Feedback](ctx, s, EndpointFeedback, nil)
}

// MarkAttendance records attendance for a member at an event.
func (s *Service) MarkAttendance(ctx context.Context, mark membership.AttendanceMark) (string, error) {
	if err := mark.Validate(); err != nil {
		return "", err
	}
	return s.mutate(ctx, http.MethodPost, EndpointMarkAttendance, mark, "Attendance marked")
}

// DocumentTypes lists document types
func (s *Service) DocumentTypes(ctx context.Context) ([]membership.DocumentType, error) {
	return listFrom[membership.DocumentType](ctx, s, EndpointDocumentTypes, nil)
}

// CreateDocumentType adds a document type
func (s *Service) CreateDocumentType(ctx context.Context, form membership.DocumentTypeForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	return s.mutate(ctx, http.MethodPost, EndpointDocumentTypeCreate, form, "Document type created")
}

// UpdateDocumentType renames a document type
func (s *Service) UpdateDocumentType(ctx context.Context, id string, form membership.DocumentTypeForm) (string, error) {
	if err := requireID(id); err != nil {
		return "", err
	}
	if err := form.Validate(); err != nil {
		return "", err
	}
	return s.mutate(ctx, http.MethodPost, EndpointDocumentTypeUpdate+url.PathEscape(id), form, "Document type updated")
}

// DeleteDocumentType removes a document type
func (s *Service) DeleteDocumentType(ctx context.Context, id string) (string, error) {
	if err := requireID(id); err != nil {
		return "", err
	}
	return s.mutate(ctx, http.MethodDelete, EndpointDocumentTypeDelete+url.PathEscape(id), nil, "Document type deleted")
}

// UploadDocument sends a member document as multipart form data. The member
// defaults to the signed-in user.
func (s *Service) UploadDocument(ctx context.Context, store session.Store, doc membership.DocumentUpload) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if doc.MemberID == "" {
		doc.MemberID = session.GetString(ctx, store, session.KeyUID)
	}
	resp, err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   EndpointDocumentUpload,
		Upload: &apiclient.Multipart{
			Fields: map[string]string{
				"document_type_id": doc.DocumentTypeID,
				"user_id":          doc.MemberID,
			},
			Files: []apiclient.FilePart{{Field: "document", FileName: doc.FileName, Content: doc.Content}},
		},
		RequireAuth: true,
	})
	if err != nil {
		return "", err
	}
	return resp.Ack("Document uploaded")
}

// JobApplicants lists job applicants
func (s *Service) JobApplicants(ctx context.Context) ([]membership.JobApplicant, error) {
	return listFrom[membership.JobApplicant](ctx, s, EndpointJobApplicants, nil)
}

// UpdateApplicantStatus moves an applicant to a new review state.
func (s *Service) UpdateApplicantStatus(ctx context.Context, id string, status membership.ApplicantStatus) (string, error) {
	if err := requireID(id); err != nil {
		return "", err
	}
	if !status.IsValid() {
		return "", shared.ValidationErrors{{Field: "status", Message: "Must be one of: pending shortlisted rejected hired"}}
	}
	body := map[string]string{"status": string(status)}
	return s.mutate(ctx, http.MethodPost, EndpointJobApplicantStatus+url.PathEscape(id), body, "Applicant updated")
}

// Certificate returns the data for a member's certificate.
func (s *Service) Certificate(ctx context.Context, memberID string) (*membership.Certificate, error) {
	var cert membership.Certificate
	if err := s.detail(ctx, EndpointCertificate, memberID, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// IDCard returns the data for a member's ID card.
func (s *Service) IDCard(ctx context.Context, memberID string) (*membership.IDCard, error) {
	var card membership.IDCard
	if err := s.detail(ctx, EndpointIDCard, memberID, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *Service) detail(ctx context.Context, prefix, id string, dst any) error {
	if err := requireID(id); err != nil {
		return err
	}
	resp, err := s.api.Do(ctx, apiclient.Request{
		Method:      http.MethodGet,
		Path:        prefix + url.PathEscape(id),
		RequireAuth: true,
	})
	if err != nil {
		return err
	}
	if err := apiclient.DecodeData(resp, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", strings.TrimSuffix(prefix, "/"), err)
	}
	return nil
}

// Payments lists payments, optionally for one member.
func (s *Service) Payments(ctx context.Context, memberID string) ([]membership.Payment, error) {
	var query map[string]string
	if memberID != "" {
		query = map[string]string{"user_id": memberID}
	}
	return listFrom[membership.Payment](ctx, s, EndpointPayments, query)
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ValidationErrors{{Field: "id", Message: "This field is required"}}
	}
	return nil
}
