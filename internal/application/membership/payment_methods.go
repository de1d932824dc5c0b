package membership

import (
	"context"
	"fmt"
	"sync"

	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// ErrPaymentMethodNotFound is returned for an unknown method id
var ErrPaymentMethodNotFound = shared.NewDomainError("PAYMENT_METHOD_NOT_FOUND", "Payment method not found")

// PaymentMethods keeps the admin-configured payment methods in the session
// store under session.KeyPaymentMethods. The API has no endpoint for them.
type PaymentMethods struct {
	store session.Store
	mu    sync.Mutex
}

// NewPaymentMethods creates the payment method service
func NewPaymentMethods(store session.Store) *PaymentMethods {
	return &PaymentMethods{store: store}
}

// List returns all configured methods in insertion order.
func (p *PaymentMethods) List(ctx context.Context) ([]membership.PaymentMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(ctx)
}

// Enabled returns only the methods offered to members.
func (p *PaymentMethods) Enabled(ctx context.Context) ([]membership.PaymentMethod, error) {
	all, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]membership.PaymentMethod, 0, len(all))
	for _, m := range all {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out, nil
}

// Save validates m and inserts it, or replaces the method with the same id.
func (p *PaymentMethods) Save(ctx context.Context, m membership.PaymentMethod) (membership.PaymentMethod, error) {
	if err := m.Validate(); err != nil {
		return membership.PaymentMethod{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.load(ctx)
	if err != nil {
		return membership.PaymentMethod{}, err
	}
	if m.ID == "" {
		m.EnsureID()
		all = append(all, m)
	} else {
		replaced := false
		for i := range all {
			if all[i].ID == m.ID {
				all[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			return membership.PaymentMethod{}, ErrPaymentMethodNotFound
		}
	}
	if err := session.SetJSON(ctx, p.store, session.KeyPaymentMethods, all); err != nil {
		return membership.PaymentMethod{}, fmt.Errorf("saving payment methods: %w", err)
	}
	return m, nil
}

// Delete removes the method with the given id.
func (p *PaymentMethods) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.load(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			all = append(all[:i], all[i+1:]...)
			return session.SetJSON(ctx, p.store, session.KeyPaymentMethods, all)
		}
	}
	return ErrPaymentMethodNotFound
}

func (p *PaymentMethods) load(ctx context.Context) ([]membership.PaymentMethod, error) {
	var all []membership.PaymentMethod
	if _, err := session.GetJSON(ctx, p.store, session.KeyPaymentMethods, &all); err != nil {
		return nil, fmt.Errorf("loading payment methods: %w", err)
	}
	if all == nil {
		all = []membership.PaymentMethod{}
	}
	return all, nil
}
