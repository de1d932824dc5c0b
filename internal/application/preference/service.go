// Package preference stores UI preferences that outlive a login: the theme
// and the ids of notifications the user has read.
package preference

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// Theme is the dashboard colour scheme
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned for anything other than light or dark
var ErrInvalidTheme = shared.NewDomainError("INVALID_THEME", "Theme must be light or dark")

// Service reads and writes preferences in the session store. Logout does
// not touch these keys.
type Service struct {
	store session.Store
	mu    sync.Mutex
}

// NewService creates a preference service
func NewService(store session.Store) *Service {
	return &Service{store: store}
}

// Theme returns the stored theme, light by default.
func (s *Service) Theme(ctx context.Context) Theme {
	if Theme(session.GetString(ctx, s.store, session.KeyTheme)) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// SetTheme stores the theme
func (s *Service) SetTheme(ctx context.Context, t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return ErrInvalidTheme
	}
	return s.store.Set(ctx, session.KeyTheme, string(t))
}

// ReadNotifications returns the acknowledged notification ids.
func (s *Service) ReadNotifications(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := session.GetJSON(ctx, s.store, session.KeyReadNotifications, &ids); err != nil {
		return nil, fmt.Errorf("loading read notifications: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// MarkRead adds ids to the read set, keeping first-seen order.
func (s *Service) MarkRead(ctx context.Context, ids ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.ReadNotifications(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id != "" && !slices.Contains(current, id) {
			current = append(current, id)
		}
	}
	if err := session.SetJSON(ctx, s.store, session.KeyReadNotifications, current); err != nil {
		return nil, err
	}
	return current, nil
}

// IsRead reports whether id was acknowledged
func (s *Service) IsRead(ctx context.Context, id string) bool {
	ids, err := s.ReadNotifications(ctx)
	return err == nil && slices.Contains(ids, id)
}

// ClearReadNotifications forgets every acknowledged id. It is the only way
// the list is cleared.
func (s *Service) ClearReadNotifications(ctx context.Context) error {
	return s.store.Delete(ctx, session.KeyReadNotifications)
}
