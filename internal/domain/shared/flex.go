package shared

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes from a JSON string, number or bool. The portal API is
// inconsistent about ids ("7" vs 7) and flags ("1" vs 1 vs true).
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	// numbers and booleans keep their literal text
	*f = FlexString(string(b))
	return nil
}

// String returns the underlying string
func (f FlexString) String() string { return string(f) }

// FlexBool decodes truthy API status fields: true, "true", "success", 1, "1".
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexBool) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = FlexBool(Truthy(raw))
	return nil
}

// Truthy interprets a decoded JSON value the way the portal API uses status flags.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case json.Number:
		n, err := t.Float64()
		return err == nil && n != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if s == "true" || s == "success" || s == "ok" {
			return true
		}
		n, err := strconv.ParseFloat(s, 64)
		return err == nil && n != 0
	default:
		return false
	}
}
