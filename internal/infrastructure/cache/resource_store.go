// Package cache provides ResourceStore, a session-scoped cache for slow-changing
// remote resources such as the organisation's group settings.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/etribe/portal/internal/domain/identity"
	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// DefaultTTL is how long a fetched entry stays fresh.
const DefaultTTL = 24 * time.Hour

// EntryVersion is the schema tag written with every persisted entry.
const EntryVersion = 1

// ErrNoSession is returned by Fetch when no session token is stored.
var ErrNoSession = identity.ErrNotAuthenticated

// Cache outcomes reported to the Observer.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeRefresh = "refresh"
	OutcomeError   = "error"
)

// CacheEntry is one fetched value with its fetch time in epoch milliseconds.
// Entries are replaced wholesale, never mutated.
type CacheEntry[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
	Version   int   `json:"version"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e CacheEntry[T]) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.Timestamp < ttl.Milliseconds()
}

// FetchFunc loads the resource from the network.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer receives cache outcomes, e.g. for Prometheus counters.
type Observer interface {
	ObserveCache(resource, outcome string)
}

// Config configures a ResourceStore.
type Config struct {
	// Name identifies the resource; it is persisted under session.CacheKey(Name).
	Name     string
	TTL      time.Duration
	Logger   *zap.Logger
	Observer Observer
	// Now is the clock; tests pin it.
	Now func() time.Time
}

// ResourceStore caches one remote resource in memory and in the session
// store. At most one network fetch happens per freshness window unless a
// refresh is forced, and concurrent fetches share a single call.
type ResourceStore[T any] struct {
	name        string
	key         string
	ttl         time.Duration
	fetch       FetchFunc[T]
	store       session.Store
	defaultData T
	now         func() time.Time
	logger      *zap.Logger
	observer    Observer

	group     singleflight.Group
	persistMu sync.Mutex

	mu      sync.RWMutex
	entry   *CacheEntry[T]
	err     error
	loading bool
	// generation changes on Clear; a fetch started before a Clear is discarded.
	generation uint64
}

// NewResourceStore creates a store and restores a still-fresh entry persisted
// by an earlier session. defaultData is what Data returns while nothing is cached.
func NewResourceStore[T any](ctx context.Context, cfg Config, store session.Store, fetch FetchFunc[T], defaultData T) *ResourceStore[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &ResourceStore[T]{
		name:        cfg.Name,
		key:         session.CacheKey(cfg.Name),
		ttl:         cfg.TTL,
		fetch:       fetch,
		store:       store,
		defaultData: defaultData,
		now:         cfg.Now,
		logger:      cfg.Logger.With(zap.String("resource", cfg.Name)),
		observer:    cfg.Observer,
	}
	s.restore(ctx)
	return s
}

func (s *ResourceStore[T]) restore(ctx context.Context) {
	var entry CacheEntry[T]
	found, err := session.GetJSON(ctx, s.store, s.key, &entry)
	if err != nil {
		s.logger.Warn("ignoring unreadable cached entry", zap.Error(err))
		return
	}
	if !found || entry.Version != EntryVersion || !entry.IsFresh(s.now(), s.ttl) {
		return
	}
	s.mu.Lock()
	s.entry = &entry
	s.mu.Unlock()
	s.logger.Debug("restored cached entry", zap.Int64("timestamp", entry.Timestamp))
}

// Fetch loads the resource unless a fresh entry exists and force is false.
// Without a session token it records ErrNoSession and makes no call. On
// failure the previous entry is kept and the error is recorded.
func (s *ResourceStore[T]) Fetch(ctx context.Context, force bool) error {
	if !force && s.hasFreshEntry() {
		s.observe(OutcomeHit)
		return nil
	}

	if session.GetString(ctx, s.store, session.KeyToken) == "" {
		s.mu.Lock()
		s.err = ErrNoSession
		s.mu.Unlock()
		return ErrNoSession
	}

	if force {
		s.observe(OutcomeRefresh)
	} else {
		s.observe(OutcomeMiss)
	}

	// Calls are shared per generation, so a fetch started before a Clear is
	// never joined by one started after it. The shared call must outlive any
	// single caller's cancellation.
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()
	ch := s.group.DoChan(s.flightKey(gen), func() (any, error) {
		return nil, s.load(context.WithoutCancel(ctx), gen)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh is Fetch with force set.
func (s *ResourceStore[T]) Refresh(ctx context.Context) error {
	return s.Fetch(ctx, true)
}

func (s *ResourceStore[T]) flightKey(gen uint64) string {
	return s.key + "#" + strconv.FormatUint(gen, 10)
}

func (s *ResourceStore[T]) load(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if s.generation == gen {
		s.loading = true
	}
	s.mu.Unlock()

	data, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		if s.generation == gen {
			s.err = err
			s.loading = false
		}
		s.mu.Unlock()

		s.observe(OutcomeError)
		s.logger.Warn("fetch failed, keeping previous entry", zap.Error(err))
		return err
	}

	entry := &CacheEntry[T]{Data: data, Timestamp: s.now().UnixMilli(), Version: EntryVersion}

	// persistMu orders this write against Clear's delete.
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding fetch result after clear")
		return nil
	}
	s.entry = entry
	s.err = nil
	s.loading = false
	s.mu.Unlock()

	// Persistence is best-effort: a storage failure never fails the fetch.
	if err := session.SetJSON(ctx, s.store, s.key, entry); err != nil {
		s.logger.Warn("failed to persist cached entry", zap.Error(err))
	}
	return nil
}

// Clear drops the entry and any error, and removes the persisted copy.
// A fetch still in flight is discarded when it completes.
func (s *ResourceStore[T]) Clear(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.entry = nil
	s.err = nil
	s.loading = false
	s.generation++
	s.mu.Unlock()

	if err := s.store.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to remove persisted entry", zap.Error(err))
	}
}

// Data returns the cached value, or the default while nothing is cached.
func (s *ResourceStore[T]) Data() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return s.defaultData
	}
	return s.entry.Data
}

// Entry returns a copy of the current entry.
func (s *ResourceStore[T]) Entry() (CacheEntry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return CacheEntry[T]{}, false
	}
	return *s.entry, true
}

// Err returns the error of the last failed fetch, nil after a success or Clear.
func (s *ResourceStore[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether a fetch is in flight.
func (s *ResourceStore[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Name returns the resource name
func (s *ResourceStore[T]) Name() string {
	return s.name
}

// BindSignals clears the store on logout and force-refreshes it on login.
func (s *ResourceStore[T]) BindSignals(bus shared.SignalSubscriber) (unsubscribe func()) {
	return bus.Subscribe(shared.SignalHandlerFunc(func(ctx context.Context, sig shared.Signal) error {
		switch sig.SignalType() {
		case shared.SignalLogout:
			s.Clear(ctx)
		case shared.SignalLogin:
			if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrNoSession) {
				return err
			}
		}
		return nil
	}), shared.SignalLogin, shared.SignalLogout)
}

func (s *ResourceStore[T]) hasFreshEntry() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry != nil && s.entry.IsFresh(s.now(), s.ttl)
}

func (s *ResourceStore[T]) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveCache(s.name, outcome)
	}
}
