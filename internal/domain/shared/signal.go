package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session lifecycle signals dispatched process-wide.
const (
	SignalLogin  = "login"
	SignalLogout = "logout"
)

// Signal is a process-wide notification such as login or logout.
type Signal interface {
	SignalID() uuid.UUID
	SignalType() string
	OccurredAt() time.Time
}

// BaseSignal provides common fields for all signals
type BaseSignal struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *BaseSignal) SignalID() uuid.UUID   { return s.ID }
func (s *BaseSignal) SignalType() string    { return s.Type }
func (s *BaseSignal) OccurredAt() time.Time { return s.Timestamp }

// NewBaseSignal creates a signal envelope of the given type
func NewBaseSignal(signalType string) BaseSignal {
	return BaseSignal{
		ID:        uuid.New(),
		Type:      signalType,
		Timestamp: time.Now(),
	}
}

// LoginSignal is published after a successful authentication.
type LoginSignal struct {
	BaseSignal
	UID  string `json:"uid"`
	Role string `json:"role"`
}

// NewLoginSignal creates a login signal for the given user
func NewLoginSignal(uid, role string) *LoginSignal {
	return &LoginSignal{BaseSignal: NewBaseSignal(SignalLogin), UID: uid, Role: role}
}

// LogoutSignal is published on explicit logout.
type LogoutSignal struct {
	BaseSignal
	UID string `json:"uid"`
}

// NewLogoutSignal creates a logout signal for the given user
func NewLogoutSignal(uid string) *LogoutSignal {
	return &LogoutSignal{BaseSignal: NewBaseSignal(SignalLogout), UID: uid}
}

// SignalHandler handles signals
type SignalHandler interface {
	Handle(ctx context.Context, signal Signal) error
}

// SignalHandlerFunc adapts a function to SignalHandler
type SignalHandlerFunc func(ctx context.Context, signal Signal) error

// Handle calls f(ctx, signal)
func (f SignalHandlerFunc) Handle(ctx context.Context, signal Signal) error {
	return f(ctx, signal)
}

// SignalPublisher publishes signals
type SignalPublisher interface {
	Publish(ctx context.Context, signals ...Signal) error
}

// SignalSubscriber subscribes to signals
type SignalSubscriber interface {
	// Subscribe registers a handler for the given signal types; with no types the
	// handler receives every signal. The returned func removes the subscription.
	Subscribe(handler SignalHandler, signalTypes ...string) (unsubscribe func())
}

// SignalBus combines publisher and subscriber capabilities
type SignalBus interface {
	SignalPublisher
	SignalSubscriber
}
