// Package search defines global search results and their ordering rules.
package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/etribe/portal/internal/domain/identity"
)

// Limits applied to every search.
const (
	MinQueryLength = 2
	MaxResults     = 10
)

// ResultType identifies the collection a result came from
type ResultType string

const (
	TypeMember   ResultType = "member"
	TypeEvent    ResultType = "event"
	TypeCircular ResultType = "circular"
	TypeFeedback ResultType = "feedback"
)

// CollectionOrder is the fixed order results are appended in.
var CollectionOrder = []ResultType{TypeMember, TypeEvent, TypeCircular, TypeFeedback}

// Result is one search hit
type Result struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle"`
	Type     ResultType `json:"type"`
	Path     string     `json:"path"`
}

// Key identifies the result within one response.
func (r Result) Key() string {
	return string(r.Type) + "-" + r.ID
}

// Scope is the portal the search runs in
type Scope string

const (
	ScopeAdmin Scope = "admin"
	ScopeUser  Scope = "user"
)

// ScopeFor maps a role to its portal.
func ScopeFor(role identity.Role) Scope {
	if role.IsAdmin() {
		return ScopeAdmin
	}
	return ScopeUser
}

// ParseScope accepts "admin" or "user"; anything else is the user portal.
func ParseScope(s string) Scope {
	if Scope(strings.ToLower(strings.TrimSpace(s))) == ScopeAdmin {
		return ScopeAdmin
	}
	return ScopeUser
}

// Path builds the navigation target for a result.
func Path(scope Scope, t ResultType, id string) string {
	return fmt.Sprintf("/%s/%s-detail/%s", scope, t, id)
}

// TooShort reports whether the trimmed query has fewer than minLen runes.
// A non-positive minLen means MinQueryLength.
func TooShort(query string, minLen int) bool {
	if minLen <= 0 {
		minLen = MinQueryLength
	}
	return utf8.RuneCountInString(strings.TrimSpace(query)) < minLen
}

// Collector dedups results on Key and stops accepting at MaxResults.
type Collector struct {
	seen    map[string]struct{}
	results []Result
	limit   int
}

// NewCollector creates a collector capped at limit results
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = MaxResults
	}
	return &Collector{seen: make(map[string]struct{}), limit: limit}
}

// Add appends r unless it is a duplicate or the collector is full.
// It reports whether r was kept.
func (c *Collector) Add(r Result) bool {
	if c.Full() {
		return false
	}
	key := r.Key()
	if _, dup := c.seen[key]; dup {
		return false
	}
	c.seen[key] = struct{}{}
	c.results = append(c.results, r)
	return true
}

// Full reports whether the cap is reached
func (c *Collector) Full() bool {
	return len(c.results) >= c.limit
}

// Results returns the collected results, never nil.
func (c *Collector) Results() []Result {
	if c.results == nil {
		return []Result{}
	}
	return c.results
}
