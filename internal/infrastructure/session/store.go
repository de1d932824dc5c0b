// Package session holds the client's session state: the auth token and uid,
// the user's role, UI preferences and persisted resource caches.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Well-known session keys.
const (
	KeyToken             = "token"
	KeyUID               = "uid"
	KeyUserRole          = "userRole"
	KeyUserRoleID        = "user_role_id"
	KeyTheme             = "theme"
	KeyReadNotifications = "readNotifications"
	KeyPaymentMethods    = "payment_methods"
)

// AuthKeys are cleared together on logout.
var AuthKeys = []string{KeyToken, KeyUID, KeyUserRole, KeyUserRoleID}

// CacheKey returns the key a cached resource is persisted under.
func CacheKey(resource string) string {
	return resource + "_cache"
}

// Change describes a mutation observed through Subscribe.
type Change struct {
	Key     string
	Value   string
	Deleted bool
	Cleared bool // the whole store was cleared; Key is empty
}

// ChangeFunc receives session mutations made through this process.
type ChangeFunc func(Change)

// Store is the session storage abstraction. Writes are last-write-wins.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
	// Subscribe registers fn for every subsequent mutation. The returned func cancels it.
	Subscribe(fn ChangeFunc) (cancel func())
}

// GetString returns the value for key, or "" when absent or unreadable.
func GetString(ctx context.Context, s Store, key string) string {
	if s == nil {
		return ""
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return v
}

// GetJSON decodes the JSON value stored under key into dst.
// It reports false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding session key %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding session key %q: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}

// notifier fans mutations out to subscribers. Embedded by every backend.
type notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]ChangeFunc
}

func (n *notifier) Subscribe(fn ChangeFunc) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]ChangeFunc)
	}
	n.nextID++
	id := n.nextID
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify(c Change) {
	n.mu.RLock()
	fns := make([]ChangeFunc, 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
