package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appidentity "github.com/etribe/portal/internal/application/identity"
	"github.com/etribe/portal/internal/interfaces/http/dto"
)

func loginBackend(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(appidentity.EndpointLogin, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			respond(w, `{"status":false,"message":"Invalid password"}`)
			return
		}
		respond(w, `{"status":true,"message":"Welcome","token":"tok-1","data":{"id":7,"name":"Alice","role":"user","role_id":2}}`)
	})
	return mux
}

func TestAuthHandler_LoginAndSession(t *testing.T) {
	g := newGateway(t, loginBackend(t))

	w, env := g.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@x.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var result struct {
		Auth struct {
			UID  string `json:"uid"`
			Role string `json:"role"`
		} `json:"auth"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "7", result.Auth.UID)
	assert.Equal(t, "user", result.Auth.Role)
	assert.Equal(t, "Welcome", result.Message)
	assert.NotContains(t, string(env.Data), "tok-1")

	w, env = g.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, SessionResponse{Authenticated: true, UID: "7", Role: "user", RoleID: "2"}, sess)
}

func TestAuthHandler_LoginRejected(t *testing.T) {
	g := newGateway(t, loginBackend(t))

	w, env := g.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeInvalidCredentials, env.Error.Code)
	assert.Equal(t, "Invalid password", env.Error.Message)
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	g := newGateway(t, loginBackend(t))

	w, env := g.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)

	fields := make([]string, 0, len(env.Error.Details))
	for _, d := range env.Error.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"email", "password"}, fields)
}

func TestAuthHandler_MalformedBody(t *testing.T) {
	g := newGateway(t, loginBackend(t))

	req := newRawRequest(http.MethodPost, "/api/v1/auth/login", "{not json")
	w, env := g.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, env.Error.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	g := newGateway(t, loginBackend(t))
	g.signIn(t, "admin")

	w, _ := g.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, env := g.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.False(t, sess.Authenticated)
	assert.Empty(t, sess.UID)
}

func TestAuthHandler_ChangePasswordNeedsSession(t *testing.T) {
	g := newGateway(t, loginBackend(t))

	w, env := g.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"old_password":     "secret1",
		"new_password":     "secret2",
		"confirm_password": "secret2",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, env.Error.Code)
}

func newRawRequest(method, path, body string) *http.Request {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
