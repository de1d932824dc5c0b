package handler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmembership "github.com/etribe/portal/internal/application/membership"
	appsearch "github.com/etribe/portal/internal/application/search"
	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/domain/search"
)

type searchBackend struct {
	mux   *http.ServeMux
	calls atomic.Int32
}

func newSearchBackend() *searchBackend {
	b := &searchBackend{mux: http.NewServeMux()}
	list := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.calls.Add(1)
			respond(w, body)
		}
	}
	b.mux.HandleFunc(membership.MemberStatusActive.Endpoint(), list(`[{"id":"7","name":"Alice Smith","email":"a@x.com"}]`))
	b.mux.HandleFunc(membership.MemberStatusInactive.Endpoint(), list(`[]`))
	b.mux.HandleFunc(membership.MemberStatusExpired.Endpoint(), list(`{"status":true,"data":[{"id":"9","name":"Alina Expired"}]}`))
	b.mux.HandleFunc(appmembership.EndpointEvents, list(`[]`))
	b.mux.HandleFunc(appmembership.EndpointCirculars, list(`[]`))
	b.mux.HandleFunc(appmembership.EndpointFeedback, list(`[]`))
	return b
}

func TestSearchHandler_UserScopeFromSession(t *testing.T) {
	b := newSearchBackend()
	g := newGateway(t, b.mux)
	g.signIn(t, "user")

	w, env := g.do(t, http.MethodGet, "/api/v1/search?q=alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, search.ScopeUser, resp.Scope)
	assert.Equal(t, []search.Result{{
		ID:       "7",
		Title:    "Alice Smith",
		Subtitle: "a@x.com",
		Type:     search.TypeMember,
		Path:     "/user/member-detail/7",
	}}, resp.Results)
}

func TestSearchHandler_AdminScope(t *testing.T) {
	b := newSearchBackend()
	g := newGateway(t, b.mux)
	g.signIn(t, "admin")

	_, env := g.do(t, http.MethodGet, "/api/v1/search?q=ali", nil)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	assert.Equal(t, search.ScopeAdmin, resp.Scope)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "/admin/member-detail/7", resp.Results[0].Path)
	assert.Equal(t, "9", resp.Results[1].ID)
	assert.Equal(t, int32(6), b.calls.Load())
}

func TestSearchHandler_ShortQuery(t *testing.T) {
	b := newSearchBackend()
	g := newGateway(t, b.mux)
	g.signIn(t, "user")

	w, env := g.do(t, http.MethodGet, "/api/v1/search?q=a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, int32(0), b.calls.Load())
}

// sseEvent reads one event from an SSE stream.
func sseEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSearchHandler_LiveStream(t *testing.T) {
	b := newSearchBackend()
	g := newGateway(t, b.mux, WithSearchDebounce(150*time.Millisecond))
	g.signIn(t, "user")

	srv := httptest.NewServer(g.engine)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/search/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := sseEvent(t, reader)
	require.Equal(t, "connected", event)
	var connected struct {
		StreamID string `json:"stream_id"`
		Scope    string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &connected))
	assert.Equal(t, "user", connected.Scope)
	assert.Equal(t, 1, g.search.StreamCount())

	post := func(query string) {
		body, _ := json.Marshal(LiveInputRequest{Query: query})
		r, err := http.Post(srv.URL+"/api/v1/search/live/"+connected.StreamID, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, http.StatusAccepted, r.StatusCode)
	}
	post("al")
	post("ali")
	post("alice")

	event, data = sseEvent(t, reader)
	require.Equal(t, "results", event)
	var outcome struct {
		Seq     uint64          `json:"seq"`
		Query   string          `json:"query"`
		Results []search.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &outcome))
	assert.Equal(t, uint64(3), outcome.Seq)
	assert.Equal(t, "alice", outcome.Query)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "7", outcome.Results[0].ID)

	resp.Body.Close()
	assert.Eventually(t, func() bool { return g.search.StreamCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSearchHandler_InputUnknownStream(t *testing.T) {
	g := newGateway(t, newSearchBackend().mux)

	w, env := g.do(t, http.MethodPost, "/api/v1/search/live/missing", LiveInputRequest{Query: "alice"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestSearchHandler_MaxStreams(t *testing.T) {
	h := NewSearchHandler(nil, nil, WithMaxLiveStreams(1))
	defer h.Stop()
	h.count.Store(1)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/search/live", nil)
	h.Stream(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_MAX_CONNECTIONS")
}

func TestSearchHandler_ErrorEventIsValidJSON(t *testing.T) {
	h := NewSearchHandler(nil, nil)
	defer h.Stop()
	stream := &liveStream{
		ID:     "s1",
		events: make(chan SSEMessage, 1),
		done:   make(chan struct{}),
	}

	h.deliver(stream, appsearch.Outcome{Seq: 4, Query: "al", Err: errors.New("bad \x00 byte \a and \"quotes\"")})

	msg := <-stream.events
	assert.Equal(t, "error", msg.Event)
	assert.Equal(t, "4", msg.ID)

	var payload struct {
		Seq     uint64 `json:"seq"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Data), &payload))
	assert.Equal(t, uint64(4), payload.Seq)
	assert.Equal(t, "bad \x00 byte \a and \"quotes\"", payload.Message)
}
