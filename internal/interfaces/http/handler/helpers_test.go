package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/etribe/portal/internal/application/groupdata"
	appidentity "github.com/etribe/portal/internal/application/identity"
	appmembership "github.com/etribe/portal/internal/application/membership"
	"github.com/etribe/portal/internal/application/preference"
	appsearch "github.com/etribe/portal/internal/application/search"
	"github.com/etribe/portal/internal/infrastructure/apiclient"
	"github.com/etribe/portal/internal/infrastructure/config"
	"github.com/etribe/portal/internal/infrastructure/event"
	"github.com/etribe/portal/internal/infrastructure/session"
	"github.com/etribe/portal/internal/interfaces/http/dto"
	"github.com/etribe/portal/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope mirrors dto.Response with the data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *dto.ErrorInfo  `json:"error"`
}

// gateway is every handler mounted over a fake membership API.
type gateway struct {
	engine *gin.Engine
	store  *session.MemoryStore
	search *SearchHandler
}

func newGateway(t *testing.T, backend http.Handler, opts ...SearchOption) *gateway {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	client, err := apiclient.New(config.APIConfig{BaseURL: srv.URL}, store)
	require.NoError(t, err)

	bus := event.NewInMemorySignalBus(zap.NewNop())
	auth := appidentity.NewAuthService(client, store, bus, appidentity.DefaultAuthServiceConfig(), zap.NewNop())
	members := appmembership.NewService(client, zap.NewNop())
	group := groupdata.NewService(context.Background(), client, store, bus, groupdata.Config{Logger: zap.NewNop()})
	t.Cleanup(group.Close)

	searchHandler := NewSearchHandler(appsearch.NewAggregator(members, appsearch.Config{}), auth, opts...)
	t.Cleanup(searchHandler.Stop)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1")
	for _, r := range []interface{ RegisterRoutes(*gin.RouterGroup) }{
		NewAuthHandler(auth),
		searchHandler,
		NewGroupDataHandler(group),
		NewMembershipHandler(members, store),
		NewPaymentMethodHandler(appmembership.NewPaymentMethods(store)),
		NewPreferenceHandler(preference.NewService(store)),
	} {
		r.RegisterRoutes(api)
	}
	return &gateway{engine: engine, store: store, search: searchHandler}
}

func (g *gateway) signIn(t *testing.T, role string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, g.store.Set(ctx, session.KeyToken, "tok"))
	require.NoError(t, g.store.Set(ctx, session.KeyUID, "7"))
	require.NoError(t, g.store.Set(ctx, session.KeyUserRole, role))
}

func (g *gateway) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.serve(t, req)
}

func (g *gateway) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	g.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func respond(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
