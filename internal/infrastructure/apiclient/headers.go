package apiclient

import (
	"context"
	"net/http"

	"github.com/etribe/portal/internal/infrastructure/session"
)

// Header names expected by the portal API. The lowercase ones are sent
// verbatim; the backend reads them case-sensitively.
const (
	HeaderClientService = "Client-Service"
	HeaderAuthKey       = "Auth-Key"
	HeaderUID           = "uid"
	HeaderToken         = "token"
	HeaderRoutingURL    = "rurl"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
)

// Credentials are the static, environment-level header values.
type Credentials struct {
	ServiceID  string
	AuthKey    string
	RoutingURL string
}

// BuildAuthHeaders assembles the header set every JSON call carries. token
// and uid are read from the session at call time so the headers follow the
// latest login. Absent values become empty strings; it never fails.
func BuildAuthHeaders(ctx context.Context, creds Credentials, store session.Store) http.Header {
	h := BuildUploadHeaders(ctx, creds, store)
	h.Set(HeaderContentType, "application/json")
	return h
}

// BuildUploadHeaders is BuildAuthHeaders without Content-Type, for multipart
// requests whose boundary is set by the encoder.
func BuildUploadHeaders(ctx context.Context, creds Credentials, store session.Store) http.Header {
	token := session.GetString(ctx, store, session.KeyToken)
	uid := session.GetString(ctx, store, session.KeyUID)

	h := http.Header{}
	h.Set(HeaderClientService, creds.ServiceID)
	h.Set(HeaderAuthKey, creds.AuthKey)
	h[HeaderUID] = []string{uid}
	h[HeaderToken] = []string{token}
	h[HeaderRoutingURL] = []string{creds.RoutingURL}
	if token != "" {
		h.Set(HeaderAuthorization, "Bearer "+token)
	}
	return h
}
