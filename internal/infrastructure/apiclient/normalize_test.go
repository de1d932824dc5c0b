package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_StructuredInputUnchanged(t *testing.T) {
	obj := map[string]any{"status": true, "data": []any{"a"}}
	list := []any{float64(1), "two"}
	num := 42

	assert.Equal(t, obj, Normalize(obj))
	assert.Equal(t, list, Normalize(list))
	assert.Equal(t, num, Normalize(num))
	assert.Nil(t, Normalize(nil))
}

func TestNormalize_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{
			name: "whole string JSON object",
			in:   `{"status":true,"message":"ok"}`,
			want: map[string]any{"status": true, "message": "ok"},
		},
		{
			name: "whole string JSON array",
			in:   `[{"id":"7"}]`,
			want: []any{map[string]any{"id": "7"}},
		},
		{
			name: "warning before payload",
			in:   `PHP warning: Undefined index in /var/www/api.php on line 12 {"status":true,"token":"abc"}`,
			want: map[string]any{"status": true, "token": "abc"},
		},
		{
			name: "later envelope wins over earlier one",
			in:   `<b>Notice</b> {"message":"first"} trailing {"status":false,"message":"second"}`,
			want: map[string]any{"status": false, "message": "second"},
		},
		{
			name: "skips trailing braces without envelope keys",
			in:   `{"status":true,"data":{"id":1}} debug: {"elapsed":3}`,
			want: map[string]any{"status": true, "data": map[string]any{"id": float64(1)}},
		},
		{
			name: "one nested level tolerated",
			in:   `Deprecated: foo() {"status":1,"data":{"name":"Alice"}}`,
			want: map[string]any{"status": float64(1), "data": map[string]any{"name": "Alice"}},
		},
		{
			name: "plain text returned unchanged",
			in:   "plain error text with no braces",
			want: "plain error text with no braces",
		},
		{
			name: "braces without envelope keys returned unchanged",
			in:   `Fatal error {"line":12} in handler`,
			want: `Fatal error {"line":12} in handler`,
		},
		{
			name: "malformed candidate returned unchanged",
			in:   `error {status: true}`,
			want: `error {status: true}`,
		},
		{
			name: "empty string returned unchanged",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Bytes(t *testing.T) {
	raw := []byte(`Warning: x {"status":true,"token":"abc"}`)
	assert.Equal(t, map[string]any{"status": true, "token": "abc"}, Normalize(raw))

	noise := []byte("<html>502 Bad Gateway</html>")
	assert.Equal(t, noise, Normalize(noise))
}

func TestNormalizeBody(t *testing.T) {
	t.Run("valid JSON passes through", func(t *testing.T) {
		body := []byte(`  {"status":true}  `)
		out, ok := NormalizeBody(body)
		assert.True(t, ok)
		assert.Equal(t, body, out)
	})

	t.Run("extracts trailing envelope", func(t *testing.T) {
		out, ok := NormalizeBody([]byte(`Notice: x {"status":false,"message":"Invalid token"}`))
		assert.True(t, ok)
		assert.JSONEq(t, `{"status":false,"message":"Invalid token"}`, string(out))
	})

	t.Run("reports no JSON", func(t *testing.T) {
		body := []byte("Service Unavailable")
		out, ok := NormalizeBody(body)
		assert.False(t, ok)
		assert.Equal(t, body, out)
	})
}
