package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/event"
	"github.com/etribe/portal/internal/infrastructure/session"
)

type settings struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

var defaultSettings = settings{Name: "Member Portal"}

// countingFetcher counts network calls and returns a configurable result
type countingFetcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	data  settings
	err   error
	gate  chan struct{}
}

func (f *countingFetcher) fetch(ctx context.Context) (settings, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *countingFetcher) set(data settings, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

func loggedInStore(t *testing.T) *session.MemoryStore {
	t.Helper()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), session.KeyToken, "tok"))
	return store
}

func newStore(t *testing.T, store session.Store, f *countingFetcher, now func() time.Time) *ResourceStore[settings] {
	t.Helper()
	return NewResourceStore(context.Background(), Config{Name: "groupData", Now: now, Logger: zap.NewNop()}, store, f.fetch, defaultSettings)
}

func TestCacheEntry_FreshnessBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 24 * time.Hour

	justFresh := CacheEntry[settings]{Timestamp: now.Add(-ttl + time.Millisecond).UnixMilli(), Version: 1}
	justStale := CacheEntry[settings]{Timestamp: now.Add(-ttl - time.Millisecond).UnixMilli(), Version: 1}
	exactly := CacheEntry[settings]{Timestamp: now.Add(-ttl).UnixMilli(), Version: 1}

	assert.True(t, justFresh.IsFresh(now, ttl))
	assert.False(t, justStale.IsFresh(now, ttl))
	assert.False(t, exactly.IsFresh(now, ttl))
}

func TestResourceStore_ForceIgnoresFreshness(t *testing.T) {
	f := &countingFetcher{data: settings{Name: "Etribe"}}
	s := newStore(t, loggedInStore(t), f, time.Now)

	require.NoError(t, s.Fetch(context.Background(), false))
	require.NoError(t, s.Fetch(context.Background(), true))
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, int32(3), f.calls.Load())
}

func TestResourceStore_FetchSuppression(t *testing.T) {
	f := &countingFetcher{data: settings{Name: "Etribe"}}
	s := newStore(t, loggedInStore(t), f, time.Now)

	require.NoError(t, s.Fetch(context.Background(), false))
	require.NoError(t, s.Fetch(context.Background(), false))

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, "Etribe", s.Data().Name)
}

func TestResourceStore_RefetchesAfterExpiry(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	f := &countingFetcher{data: settings{Name: "v1"}}
	s := newStore(t, loggedInStore(t), f, now)

	require.NoError(t, s.Fetch(context.Background(), false))
	clock = clock.Add(25 * time.Hour)
	f.set(settings{Name: "v2"}, nil)
	require.NoError(t, s.Fetch(context.Background(), false))

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, "v2", s.Data().Name)
}

func TestResourceStore_ClearResetsToDefault(t *testing.T) {
	ctx := context.Background()
	store := loggedInStore(t)
	f := &countingFetcher{data: settings{Name: "Etribe"}}
	s := newStore(t, store, f, time.Now)

	require.NoError(t, s.Fetch(ctx, false))
	_, persisted, _ := store.Get(ctx, "groupData_cache")
	require.True(t, persisted)

	s.Clear(ctx)

	assert.Equal(t, defaultSettings, s.Data())
	assert.NoError(t, s.Err())
	assert.False(t, s.Loading())
	_, ok := s.Entry()
	assert.False(t, ok)
	_, persisted, err := store.Get(ctx, "groupData_cache")
	require.NoError(t, err)
	assert.False(t, persisted)
}

func TestResourceStore_NoSession(t *testing.T) {
	f := &countingFetcher{}
	s := newStore(t, session.NewMemoryStore(), f, time.Now)

	err := s.Fetch(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, s.Err(), ErrNoSession)
	assert.Zero(t, f.calls.Load())
	assert.Equal(t, defaultSettings, s.Data())
}

func TestResourceStore_StaleOverBlank(t *testing.T) {
	f := &countingFetcher{data: settings{Name: "cached"}}
	s := newStore(t, loggedInStore(t), f, time.Now)
	require.NoError(t, s.Fetch(context.Background(), false))
	before, _ := s.Entry()

	boom := errors.New("connection reset")
	f.set(settings{}, boom)
	err := s.Refresh(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Err(), boom)
	after, ok := s.Entry()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, "cached", s.Data().Name)

	// a later success clears the error
	f.set(settings{Name: "new"}, nil)
	require.NoError(t, s.Refresh(context.Background()))
	assert.NoError(t, s.Err())
}

func TestResourceStore_RestoresFreshPersistedEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := loggedInStore(t)
	require.NoError(t, session.SetJSON(ctx, store, "groupData_cache", CacheEntry[settings]{
		Data:      settings{Name: "persisted"},
		Timestamp: now.Add(-time.Hour).UnixMilli(),
		Version:   EntryVersion,
	}))

	f := &countingFetcher{}
	s := newStore(t, store, f, func() time.Time { return now })

	assert.Equal(t, "persisted", s.Data().Name)
	require.NoError(t, s.Fetch(ctx, false))
	assert.Zero(t, f.calls.Load())
}

func TestResourceStore_IgnoresStaleOrForeignPersistedEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	for name, entry := range map[string]CacheEntry[settings]{
		"stale":         {Data: settings{Name: "old"}, Timestamp: now.Add(-48 * time.Hour).UnixMilli(), Version: EntryVersion},
		"other version": {Data: settings{Name: "v2"}, Timestamp: now.UnixMilli(), Version: 2},
	} {
		t.Run(name, func(t *testing.T) {
			store := loggedInStore(t)
			require.NoError(t, session.SetJSON(ctx, store, "groupData_cache", entry))

			s := newStore(t, store, &countingFetcher{}, func() time.Time { return now })
			assert.Equal(t, defaultSettings, s.Data())
		})
	}

	t.Run("garbage", func(t *testing.T) {
		store := loggedInStore(t)
		require.NoError(t, store.Set(ctx, "groupData_cache", "{not json"))
		s := newStore(t, store, &countingFetcher{}, time.Now)
		assert.Equal(t, defaultSettings, s.Data())
	})
}

func TestResourceStore_ConcurrentFetchesShareOneCall(t *testing.T) {
	f := &countingFetcher{data: settings{Name: "Etribe"}, gate: make(chan struct{})}
	s := newStore(t, loggedInStore(t), f, time.Now)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Fetch(context.Background(), true)
		}()
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 && s.Loading() }, time.Second, time.Millisecond)
	// let the remaining callers join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.calls.Load())
	assert.False(t, s.Loading())
}

func TestResourceStore_ClearDuringFetchDiscardsResult(t *testing.T) {
	ctx := context.Background()
	store := loggedInStore(t)
	f := &countingFetcher{data: settings{Name: "late"}, gate: make(chan struct{})}
	s := newStore(t, store, f, time.Now)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(ctx, false) }()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Clear(ctx)
	close(f.gate)
	require.NoError(t, <-done)

	assert.Equal(t, defaultSettings, s.Data())
	_, persisted, _ := store.Get(ctx, "groupData_cache")
	assert.False(t, persisted)
}

func TestResourceStore_RefreshAfterClearDoesNotJoinStaleFetch(t *testing.T) {
	ctx := context.Background()
	store := loggedInStore(t)
	f := &countingFetcher{data: settings{Name: "before logout"}, gate: make(chan struct{})}
	s := newStore(t, store, f, time.Now)

	first := make(chan error, 1)
	go func() { first <- s.Fetch(ctx, false) }()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Clear(ctx)
	f.set(settings{Name: "after login"}, nil)

	second := make(chan error, 1)
	go func() { second <- s.Refresh(ctx) }()
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)

	close(f.gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	entry, ok := s.Entry()
	require.True(t, ok)
	assert.Equal(t, "after login", entry.Data.Name)
	assert.False(t, s.Loading())

	var persisted CacheEntry[settings]
	found, err := session.GetJSON(ctx, store, "groupData_cache", &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "after login", persisted.Data.Name)
}

// MockStore is a mock implementation of session.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Subscribe(fn session.ChangeFunc) func() {
	return func() {}
}

func TestResourceStore_PersistenceFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Get", mock.Anything, "groupData_cache").Return("", false, nil)
	store.On("Get", mock.Anything, session.KeyToken).Return("tok", true, nil)
	store.On("Set", mock.Anything, "groupData_cache", mock.Anything).Return(errors.New("quota exceeded"))
	store.On("Delete", mock.Anything, []string{"groupData_cache"}).Return(errors.New("read-only"))

	f := &countingFetcher{data: settings{Name: "Etribe"}}
	s := newStore(t, store, f, time.Now)

	require.NoError(t, s.Fetch(ctx, false))
	assert.Equal(t, "Etribe", s.Data().Name)

	s.Clear(ctx)
	assert.Equal(t, defaultSettings, s.Data())
	store.AssertExpectations(t)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveCache(_, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestResourceStore_Observer(t *testing.T) {
	obs := &recordingObserver{}
	f := &countingFetcher{data: settings{Name: "x"}}
	s := NewResourceStore(context.Background(), Config{Name: "groupData", Observer: obs}, loggedInStore(t), f.fetch, defaultSettings)

	require.NoError(t, s.Fetch(context.Background(), false))
	require.NoError(t, s.Fetch(context.Background(), false))
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, []string{OutcomeMiss, OutcomeHit, OutcomeRefresh}, obs.outcomes)
}

func TestResourceStore_BindSignals(t *testing.T) {
	ctx := context.Background()
	store := loggedInStore(t)
	bus := event.NewInMemorySignalBus(zap.NewNop())
	f := &countingFetcher{data: settings{Name: "Etribe"}}
	s := newStore(t, store, f, time.Now)

	unsubscribe := s.BindSignals(bus)
	defer unsubscribe()

	require.NoError(t, s.Fetch(ctx, false))
	require.NoError(t, bus.Publish(ctx, shared.NewLoginSignal("7", "admin")))
	assert.Equal(t, int32(2), f.calls.Load(), "login forces a refetch even when fresh")

	require.NoError(t, bus.Publish(ctx, shared.NewLogoutSignal("7")))
	assert.Equal(t, defaultSettings, s.Data())
	_, persisted, _ := store.Get(ctx, "groupData_cache")
	assert.False(t, persisted)
}
