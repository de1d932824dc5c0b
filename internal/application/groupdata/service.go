// Package groupdata serves the organisation settings record through a
// session-scoped cache.
package groupdata

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/apiclient"
	"github.com/etribe/portal/internal/infrastructure/cache"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// ResourceName is the cache name; the entry persists under "groupData_cache".
const ResourceName = "groupData"

// EndpointGroupData returns the organisation settings.
const EndpointGroupData = "/groupSettings/index"

// APIClient is the subset of apiclient.Client the service depends on
type APIClient interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// Config configures the service
type Config struct {
	TTL      time.Duration
	Observer cache.Observer
	Logger   *zap.Logger
}

// Status is a snapshot of the cached record for display.
type Status struct {
	Data      membership.GroupData `json:"data"`
	FetchedAt *time.Time           `json:"fetched_at,omitempty"`
	Loading   bool                 `json:"loading"`
	Error     string               `json:"error,omitempty"`
}

// Service wraps a ResourceStore for the group data record.
type Service struct {
	store       *cache.ResourceStore[membership.GroupData]
	unsubscribe func()
	logger      *zap.Logger
}

// NewService builds the cache, restores a fresh persisted entry and binds
// it to the login and logout signals.
func NewService(ctx context.Context, api APIClient, store session.Store, bus shared.SignalSubscriber, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	fetch := func(ctx context.Context) (membership.GroupData, error) {
		resp, err := api.Do(ctx, apiclient.Request{
			Method:      http.MethodGet,
			Path:        EndpointGroupData,
			RequireAuth: true,
		})
		if err != nil {
			return membership.GroupData{}, err
		}
		var data membership.GroupData
		if err := apiclient.DecodeData(resp, &data); err != nil {
			return membership.GroupData{}, err
		}
		return data, nil
	}

	rs := cache.NewResourceStore(ctx, cache.Config{
		Name:     ResourceName,
		TTL:      cfg.TTL,
		Logger:   cfg.Logger,
		Observer: cfg.Observer,
	}, store, fetch, membership.DefaultGroupData())

	s := &Service{store: rs, logger: cfg.Logger}
	if bus != nil {
		s.unsubscribe = rs.BindSignals(bus)
	}
	return s
}

// Get returns the group data, fetching it when the cache is not fresh. On a
// failed fetch the previous data is returned together with the error.
func (s *Service) Get(ctx context.Context) (membership.GroupData, error) {
	err := s.store.Fetch(ctx, false)
	return s.store.Data(), err
}

// Warm fetches once at startup when nothing fresh was restored. A missing
// session is not an error here.
func (s *Service) Warm(ctx context.Context) {
	if err := s.store.Fetch(ctx, false); err != nil && !errors.Is(err, cache.ErrNoSession) {
		s.logger.Warn("Initial group data fetch failed", zap.Error(err))
	}
}

// Refresh forces a refetch
func (s *Service) Refresh(ctx context.Context) (membership.GroupData, error) {
	err := s.store.Refresh(ctx)
	return s.store.Data(), err
}

// Clear drops the cached record
func (s *Service) Clear(ctx context.Context) {
	s.store.Clear(ctx)
}

// Status returns a snapshot of the cache state.
func (s *Service) Status() Status {
	st := Status{Data: s.store.Data(), Loading: s.store.Loading()}
	if entry, ok := s.store.Entry(); ok {
		t := time.UnixMilli(entry.Timestamp)
		st.FetchedAt = &t
	}
	if err := s.store.Err(); err != nil {
		st.Error = apiclient.MessageOf(err, err.Error())
	}
	return st
}

// Close detaches the service from the signal bus.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
