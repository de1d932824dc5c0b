package apiclient

import (
	"encoding/json"
	"regexp"
)

// envelopeKeys mark a recovered JSON object as a real API response rather
// than incidental braces inside diagnostic text.
var envelopeKeys = []string{"status", "token", "message"}

// objectCandidate matches brace-delimited objects with at most one nested level.
var objectCandidate = regexp.MustCompile(`\{(?:[^{}]|\{[^{}]*\})*\}`)

// Normalize repairs response bodies where the backend prints warnings or
// stack traces ahead of the JSON payload.
//
// Structured values are returned unchanged. A string (or []byte) that parses
// as JSON as a whole yields the parsed value. Otherwise the last embedded
// object that parses and carries an envelope key is returned. If nothing
// qualifies the original value comes back untouched. Normalize never panics.
func Normalize(raw any) any {
	switch v := raw.(type) {
	case string:
		if parsed, ok := normalizeText(v); ok {
			return parsed
		}
		return v
	case []byte:
		if parsed, ok := normalizeText(string(v)); ok {
			return parsed
		}
		return v
	default:
		return raw
	}
}

// NormalizeBody is the byte-level form of Normalize used on the wire. It
// returns the JSON document to decode and whether one was found.
func NormalizeBody(body []byte) ([]byte, bool) {
	if json.Valid(body) {
		return body, true
	}
	if c, ok := lastEnvelope(string(body)); ok {
		return []byte(c), true
	}
	return body, false
}

func normalizeText(s string) (any, bool) {
	var whole any
	if err := json.Unmarshal([]byte(s), &whole); err == nil {
		return whole, true
	}
	c, ok := lastEnvelope(s)
	if !ok {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(c), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// lastEnvelope scans candidates from last to first and returns the first one
// that decodes to an object with an envelope key.
func lastEnvelope(s string) (string, bool) {
	candidates := objectCandidate.FindAllString(s, -1)
	for i := len(candidates) - 1; i >= 0; i-- {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidates[i]), &obj); err != nil {
			continue
		}
		if hasEnvelopeKey(obj) {
			return candidates[i], true
		}
	}
	return "", false
}

func hasEnvelopeKey(obj map[string]any) bool {
	for _, k := range envelopeKeys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}
