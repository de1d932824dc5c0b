// Package membership holds the records served by the portal API: members,
// events, circulars, feedback, documents, job applicants and payments.
package membership

import (
	"strings"

	"github.com/etribe/portal/internal/domain/shared"
)

// MemberStatus selects one of the member listings
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusExpired  MemberStatus = "expired"
)

// memberEndpoints maps each status to its listing endpoint.
var memberEndpoints = map[MemberStatus]string{
	MemberStatusActive:   "/userDetail/active_members",
	MemberStatusInactive: "/userDetail/inactive_members",
	MemberStatusPending:  "/userDetail/pending_members",
	MemberStatusExpired:  "/userDetail/membership_expired",
}

// ParseMemberStatus converts a query value to a MemberStatus.
func ParseMemberStatus(s string) (MemberStatus, error) {
	status := MemberStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := memberEndpoints[status]; !ok {
		return "", shared.NewDomainError("INVALID_MEMBER_STATUS", "member status must be one of active, inactive, pending, expired")
	}
	return status, nil
}

// Endpoint returns the listing path for the status
func (s MemberStatus) Endpoint() string {
	return memberEndpoints[s]
}

// IsValid reports whether the status has a listing endpoint
func (s MemberStatus) IsValid() bool {
	_, ok := memberEndpoints[s]
	return ok
}

// Member is one row of a member listing.
type Member struct {
	ID             shared.FlexString `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Mobile         string            `json:"mobile"`
	Phone          string            `json:"phone,omitempty"`
	Company        string            `json:"company"`
	Address        string            `json:"address,omitempty"`
	City           string            `json:"city,omitempty"`
	MembershipType string            `json:"membership_type,omitempty"`
	ValidUpto      string            `json:"valid_upto,omitempty"`
	Status         shared.FlexString `json:"status,omitempty"`
	ProfileImage   string            `json:"profile_image,omitempty"`
}

// ContactPhone prefers the mobile number over the landline
func (m Member) ContactPhone() string {
	if m.Mobile != "" {
		return m.Mobile
	}
	return m.Phone
}
