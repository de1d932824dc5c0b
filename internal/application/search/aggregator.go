// Package search implements the portal's global search: a fan-out over the
// member, event, circular and feedback listings filtered client-side.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/domain/search"
	"github.com/etribe/portal/internal/infrastructure/logger"
)

// Source lists the collections searched. membership.Service implements it.
type Source interface {
	Members(ctx context.Context, status membership.MemberStatus) ([]membership.Member, error)
	Events(ctx context.Context) ([]membership.Event, error)
	Circulars(ctx context.Context) ([]membership.Circular, error)
	Feedback(ctx context.Context) ([]membership.Feedback, error)
}

// Observer receives search metrics
type Observer interface {
	ObserveSearch(scope string, results int)
	ObserveBranchFailure(collection string)
}

// Config configures the aggregator
type Config struct {
	MinQueryLength int
	MaxResults     int
	Logger         *zap.Logger
	Observer       Observer
}

// adminMemberStatuses are merged, in this order, for the admin portal.
var adminMemberStatuses = []membership.MemberStatus{
	membership.MemberStatusActive,
	membership.MemberStatusInactive,
	membership.MemberStatusExpired,
}

// Aggregator runs global searches. It holds no per-query state.
type Aggregator struct {
	source   Source
	minLen   int
	limit    int
	logger   *zap.Logger
	observer Observer
}

// NewAggregator creates an aggregator over source
func NewAggregator(source Source, cfg Config) *Aggregator {
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = search.MinQueryLength
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = search.MaxResults
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Aggregator{
		source:   source,
		minLen:   cfg.MinQueryLength,
		limit:    cfg.MaxResults,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
}

// fetched holds what each branch returned; a failed branch leaves its slot nil.
type fetched struct {
	members   [][]membership.Member
	events    []membership.Event
	circulars []membership.Circular
	feedback  []membership.Feedback
}

// Search returns at most MaxResults hits for query, deduplicated on type and
// id, in member, event, circular, feedback order. Queries shorter than
// MinQueryLength return an empty list without any call. A failing branch
// contributes nothing; only cancellation of ctx fails the search.
func (a *Aggregator) Search(ctx context.Context, query string, scope search.Scope) ([]search.Result, error) {
	if search.TooShort(query, a.minLen) {
		return []search.Result{}, nil
	}
	log := logger.Enrich(ctx, a.logger).With(zap.String("scope", string(scope)))

	statuses := []membership.MemberStatus{membership.MemberStatusActive}
	if scope == search.ScopeAdmin {
		statuses = adminMemberStatuses
	}

	var (
		g   errgroup.Group
		got = fetched{members: make([][]membership.Member, len(statuses))}
	)
	for i, status := range statuses {
		g.Go(func() error {
			members, err := a.source.Members(ctx, status)
			if a.branchFailed(log, "members_"+string(status), err) {
				return nil
			}
			got.members[i] = members
			return nil
		})
	}
	g.Go(func() error {
		events, err := a.source.Events(ctx)
		if !a.branchFailed(log, "events", err) {
			got.events = events
		}
		return nil
	})
	g.Go(func() error {
		circulars, err := a.source.Circulars(ctx)
		if !a.branchFailed(log, "circulars", err) {
			got.circulars = circulars
		}
		return nil
	})
	if scope == search.ScopeAdmin {
		g.Go(func() error {
			feedback, err := a.source.Feedback(ctx)
			if !a.branchFailed(log, "feedback", err) {
				got.feedback = feedback
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := a.collect(newMatcher(query), scope, got)
	if a.observer != nil {
		a.observer.ObserveSearch(string(scope), len(results))
	}
	log.Debug("Search complete", zap.Int("results", len(results)))
	return results, nil
}

func (a *Aggregator) branchFailed(log *zap.Logger, collection string, err error) bool {
	if err == nil {
		return false
	}
	log.Warn("Search branch failed", zap.String("collection", collection), zap.Error(err))
	if a.observer != nil {
		a.observer.ObserveBranchFailure(collection)
	}
	return true
}

func (a *Aggregator) collect(m matcher, scope search.Scope, got fetched) []search.Result {
	c := search.NewCollector(a.limit)

	for _, list := range got.members {
		for _, mem := range list {
			if c.Full() {
				return c.Results()
			}
			if m.any(mem.Name, mem.Email, mem.Mobile, mem.Phone, mem.Company) {
				c.Add(result(scope, search.TypeMember, mem.ID.String(), mem.Name, mem.Email))
			}
		}
	}
	for _, ev := range got.events {
		if c.Full() {
			return c.Results()
		}
		if m.any(ev.Title, ev.Name, ev.Venue, ev.Description) {
			c.Add(result(scope, search.TypeEvent, ev.ID.String(), ev.DisplayTitle(), firstNonEmpty(ev.Venue, ev.EventDate)))
		}
	}
	for _, ci := range got.circulars {
		if c.Full() {
			return c.Results()
		}
		if m.any(ci.Title, ci.Subject, ci.Description) {
			c.Add(result(scope, search.TypeCircular, ci.ID.String(), ci.DisplayTitle(), ci.Date))
		}
	}
	for _, fb := range got.feedback {
		if c.Full() {
			return c.Results()
		}
		if m.any(fb.Name, fb.Email, fb.Subject, fb.Description) {
			c.Add(result(scope, search.TypeFeedback, fb.ID.String(), fb.DisplayTitle(), fb.Email))
		}
	}
	return c.Results()
}

func result(scope search.Scope, t search.ResultType, id, title, subtitle string) search.Result {
	return search.Result{
		ID:       id,
		Title:    title,
		Subtitle: subtitle,
		Type:     t,
		Path:     search.Path(scope, t, id),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// matcher does case-insensitive substring matching with Unicode case folding.
// A cases.Caser is not safe for concurrent use, so each search builds its own.
type matcher struct {
	needle string
	fold   cases.Caser
}

func newMatcher(query string) matcher {
	fold := cases.Fold()
	return matcher{needle: fold.String(strings.TrimSpace(query)), fold: fold}
}

func (m matcher) any(fields ...string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(m.fold.String(f), m.needle) {
			return true
		}
	}
	return false
}
