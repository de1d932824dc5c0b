package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/interfaces/http/dto"
)

func TestPreferenceHandler(t *testing.T) {
	g := newGateway(t, http.NewServeMux())

	_, env := g.do(t, http.MethodGet, "/api/v1/preferences", nil)
	var prefs PreferencesResponse
	require.NoError(t, json.Unmarshal(env.Data, &prefs))
	assert.Equal(t, PreferencesResponse{Theme: "light", ReadNotifications: []string{}}, prefs)

	w, _ := g.do(t, http.MethodPut, "/api/v1/preferences/theme", ThemeRequest{Theme: "dark"})
	require.Equal(t, http.StatusOK, w.Code)
	w, env = g.do(t, http.MethodPut, "/api/v1/preferences/theme", ThemeRequest{Theme: "neon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, env.Error.Code)

	_, env = g.do(t, http.MethodPost, "/api/v1/notifications/read", MarkReadRequest{IDs: []string{"4", "2", "4"}})
	var ids []string
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	assert.Equal(t, []string{"4", "2"}, ids)

	_, env = g.do(t, http.MethodGet, "/api/v1/preferences", nil)
	require.NoError(t, json.Unmarshal(env.Data, &prefs))
	assert.Equal(t, PreferencesResponse{Theme: "dark", ReadNotifications: []string{"4", "2"}}, prefs)

	w, _ = g.do(t, http.MethodDelete, "/api/v1/notifications/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPaymentMethodHandler(t *testing.T) {
	g := newGateway(t, http.NewServeMux())

	w, env := g.do(t, http.MethodPost, "/api/v1/payment-methods", map[string]any{
		"id":      "client-chosen",
		"kind":    "upi",
		"label":   " UPI ",
		"upi_id":  "chamber@bank",
		"fee":     "0",
		"enabled": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created membership.PaymentMethod
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "client-chosen", created.ID)
	assert.Equal(t, "UPI", created.Label)

	w, env = g.do(t, http.MethodPost, "/api/v1/payment-methods", map[string]any{"kind": "bank", "label": "HDFC"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)

	w, _ = g.do(t, http.MethodPut, "/api/v1/payment-methods/"+created.ID, map[string]any{
		"kind": "upi", "label": "UPI", "upi_id": "chamber@bank", "enabled": false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	_, env = g.do(t, http.MethodGet, "/api/v1/payment-methods?enabled=true", nil)
	var enabled []membership.PaymentMethod
	require.NoError(t, json.Unmarshal(env.Data, &enabled))
	assert.Empty(t, enabled)

	w, env = g.do(t, http.MethodPut, "/api/v1/payment-methods/unknown", map[string]any{
		"kind": "cash", "label": "Cash",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)

	w, _ = g.do(t, http.MethodDelete, "/api/v1/payment-methods/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
