package membership

import "github.com/etribe/portal/internal/domain/shared"

// GroupData is the organisation's settings record. It changes rarely and is
// served from the group data cache.
type GroupData struct {
	ID            shared.FlexString `json:"id"`
	Name          string            `json:"name"`
	ShortName     string            `json:"short_name,omitempty"`
	Logo          string            `json:"logo"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address"`
	Website       string            `json:"website,omitempty"`
	SignatureName string            `json:"signature_name,omitempty"`
	Signature     string            `json:"signature,omitempty"`
	Currency      string            `json:"currency,omitempty"`
}

// DefaultGroupData is what consumers see before the first fetch and after logout.
func DefaultGroupData() GroupData {
	return GroupData{Name: "Member Portal", Currency: "INR"}
}
