package membership

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etribe/portal/internal/domain/shared"
)

// Payment is a recorded membership payment
type Payment struct {
	ID            shared.FlexString `json:"id"`
	MemberID      shared.FlexString `json:"user_id"`
	MemberName    string            `json:"name"`
	Amount        decimal.Decimal   `json:"amount"`
	Mode          string            `json:"payment_mode"`
	TransactionID string            `json:"transaction_id,omitempty"`
	PaidOn        string            `json:"payment_date"`
	Status        shared.FlexString `json:"status"`
}

// TotalAmount sums the payments
func TotalAmount(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// PaymentMethodKind is how a member can pay
type PaymentMethodKind string

const (
	PaymentMethodBank   PaymentMethodKind = "bank"
	PaymentMethodUPI    PaymentMethodKind = "upi"
	PaymentMethodCash   PaymentMethodKind = "cash"
	PaymentMethodCheque PaymentMethodKind = "cheque"
	PaymentMethodOnline PaymentMethodKind = "online"
)

// PaymentMethod is configured by admins and kept client-side; the API has
// no endpoint for it.
type PaymentMethod struct {
	ID            string            `json:"id"`
	Kind          PaymentMethodKind `json:"kind" validate:"required,oneof=bank upi cash cheque online"`
	Label         string            `json:"label" validate:"required,max=100"`
	AccountName   string            `json:"account_name,omitempty" validate:"required_if=Kind bank,max=150"`
	AccountNumber string            `json:"account_number,omitempty" validate:"required_if=Kind bank,omitempty,numeric,min=6,max=20"`
	IFSC          string            `json:"ifsc,omitempty" validate:"required_if=Kind bank,omitempty,len=11,alphanum"`
	UPIID         string            `json:"upi_id,omitempty" validate:"required_if=Kind upi,omitempty,contains=@"`
	// Fee is a flat convenience charge added on top of the membership amount.
	Fee     decimal.Decimal `json:"fee"`
	Enabled bool            `json:"enabled"`
}

// Validate checks the method. Fee must not be negative.
func (m *PaymentMethod) Validate() error {
	m.Label = strings.TrimSpace(m.Label)
	m.IFSC = strings.ToUpper(strings.TrimSpace(m.IFSC))
	if err := shared.Validate(m); err != nil {
		return err
	}
	if m.Fee.IsNegative() {
		return shared.ValidationErrors{{Field: "fee", Message: "Must not be negative"}}
	}
	return nil
}

// EnsureID assigns a new id to methods created client-side.
func (m *PaymentMethod) EnsureID() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
}
