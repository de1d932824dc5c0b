package membership

import (
	"strings"

	"github.com/etribe/portal/internal/domain/shared"
)

// Event is an organisation event
type Event struct {
	ID          shared.FlexString `json:"id"`
	Title       string            `json:"title"`
	Name        string            `json:"name,omitempty"`
	Venue       string            `json:"venue"`
	Description string            `json:"description"`
	EventDate   string            `json:"event_date"`
	EventTime   string            `json:"event_time,omitempty"`
	Image       string            `json:"image,omitempty"`
}

// DisplayTitle falls back to Name when the API omits the title.
func (e Event) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Name
}

// Circular is a notice published to members
type Circular struct {
	ID          shared.FlexString `json:"id"`
	Title       string            `json:"title"`
	Subject     string            `json:"subject,omitempty"`
	Description string            `json:"description"`
	Date        string            `json:"date"`
	File        string            `json:"file,omitempty"`
}

// DisplayTitle falls back to Subject when the API omits the title.
func (c Circular) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Subject
}

// Feedback is a message submitted by a member. Only admins can list it.
type Feedback struct {
	ID          shared.FlexString `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Mobile      string            `json:"mobile,omitempty"`
	Subject     string            `json:"subject"`
	Description string            `json:"description"`
	CreatedAt   string            `json:"created_at,omitempty"`
}

// DisplayTitle prefers the subject, then the sender
func (f Feedback) DisplayTitle() string {
	if f.Subject != "" {
		return f.Subject
	}
	return f.Name
}

// AttendanceMark records a member's attendance at an event.
type AttendanceMark struct {
	EventID  string `json:"event_id" validate:"required"`
	MemberID string `json:"user_id" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=present absent"`
}

// Validate checks the mark
func (a AttendanceMark) Validate() error { return shared.Validate(a) }

// DocumentType is an admin-managed category of member documents
type DocumentType struct {
	ID   shared.FlexString `json:"id"`
	Name string            `json:"name"`
	// Required marks types every member must upload.
	Required shared.FlexBool `json:"required"`
}

// DocumentTypeForm creates or renames a document type
type DocumentTypeForm struct {
	Name     string `json:"name" validate:"required,max=100"`
	Required bool   `json:"required"`
}

// Validate trims and checks the form
func (f *DocumentTypeForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	return shared.Validate(f)
}

// DocumentUpload is one file sent to the document upload endpoint.
type DocumentUpload struct {
	DocumentTypeID string `validate:"required"`
	MemberID       string
	FileName       string `validate:"required"`
	Content        []byte `validate:"required"`
}

// Validate checks the upload
func (d DocumentUpload) Validate() error { return shared.Validate(d) }

// ApplicantStatus is the review state of a job applicant
type ApplicantStatus string

const (
	ApplicantPending     ApplicantStatus = "pending"
	ApplicantShortlisted ApplicantStatus = "shortlisted"
	ApplicantRejected    ApplicantStatus = "rejected"
	ApplicantHired       ApplicantStatus = "hired"
)

// IsValid reports whether s is a known status
func (s ApplicantStatus) IsValid() bool {
	switch s {
	case ApplicantPending, ApplicantShortlisted, ApplicantRejected, ApplicantHired:
		return true
	}
	return false
}

// JobApplicant is an application received through the careers page
type JobApplicant struct {
	ID       shared.FlexString `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Mobile   string            `json:"mobile"`
	Position string            `json:"position"`
	Resume   string            `json:"resume,omitempty"`
	Status   ApplicantStatus   `json:"status"`
}

// Certificate is the data rendered onto a membership certificate.
type Certificate struct {
	MemberID       shared.FlexString `json:"id"`
	Name           string            `json:"name"`
	Company        string            `json:"company"`
	MembershipNo   shared.FlexString `json:"membership_no"`
	MembershipType string            `json:"membership_type"`
	IssueDate      string            `json:"issue_date"`
	ValidUpto      string            `json:"valid_upto"`
}

// IDCard is the data rendered onto a member ID card.
type IDCard struct {
	MemberID     shared.FlexString `json:"id"`
	Name         string            `json:"name"`
	Mobile       string            `json:"mobile"`
	Email        string            `json:"email"`
	Company      string            `json:"company"`
	MembershipNo shared.FlexString `json:"membership_no"`
	ValidUpto    string            `json:"valid_upto"`
	Photo        string            `json:"profile_image"`
	BloodGroup   string            `json:"blood_group,omitempty"`
}
