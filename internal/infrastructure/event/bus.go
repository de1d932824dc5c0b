package event

import (
	"context"
	"sync"

	"github.com/etribe/portal/internal/domain/shared"
	"go.uber.org/zap"
)

type subscription struct {
	id      uint64
	handler shared.SignalHandler
}

// InMemorySignalBus implements SignalBus with synchronous in-process pub/sub.
// It replaces the window-level login/logout events of a browser dashboard.
type InMemorySignalBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription // signalType -> handlers
	wildcard []subscription
	logger   *zap.Logger
}

// NewInMemorySignalBus creates a new in-memory signal bus
func NewInMemorySignalBus(logger *zap.Logger) *InMemorySignalBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemorySignalBus{
		handlers: make(map[string][]subscription),
		logger:   logger,
	}
}

// Publish delivers signals to all registered handlers synchronously, in
// subscription order. Handler errors and panics are logged and do not stop
// delivery to the remaining handlers.
func (b *InMemorySignalBus) Publish(ctx context.Context, signals ...shared.Signal) error {
	for _, signal := range signals {
		for _, sub := range b.handlersFor(signal.SignalType()) {
			if err := b.dispatch(ctx, sub.handler, signal); err != nil {
				b.logger.Error("handler failed to process signal",
					zap.String("signal_type", signal.SignalType()),
					zap.String("signal_id", signal.SignalID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific signal types, or for all signals
// when none are given.
func (b *InMemorySignalBus) Subscribe(handler shared.SignalHandler, signalTypes ...string) func() {
	b.mu.Lock()
	b.nextID++
	sub := subscription{id: b.nextID, handler: handler}
	if len(signalTypes) == 0 {
		b.wildcard = append(b.wildcard, sub)
	}
	for _, st := range signalTypes {
		b.handlers[st] = append(b.handlers[st], sub)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("signal_types", signalTypes))

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(sub.id) })
	}
}

func (b *InMemorySignalBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcard = removeSubscription(b.wildcard, id)
	for st, subs := range b.handlers {
		b.handlers[st] = removeSubscription(subs, id)
		if len(b.handlers[st]) == 0 {
			delete(b.handlers, st)
		}
	}
	b.logger.Debug("handler unsubscribed")
}

func (b *InMemorySignalBus) handlersFor(signalType string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.handlers[signalType]
	out := make([]subscription, 0, len(typed)+len(b.wildcard))
	out = append(out, typed...)
	return append(out, b.wildcard...)
}

// dispatch safely delivers a signal to a handler
func (b *InMemorySignalBus) dispatch(ctx context.Context, handler shared.SignalHandler, signal shared.Signal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("signal_type", signal.SignalType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, signal)
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Ensure InMemorySignalBus implements SignalBus
var _ shared.SignalBus = (*InMemorySignalBus)(nil)
