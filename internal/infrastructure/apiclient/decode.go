package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/etribe/portal/internal/domain/shared"
)

// Envelope is the common {status, message, data} wrapper of portal responses.
type Envelope struct {
	Status  shared.FlexBool   `json:"status"`
	Message shared.FlexString `json:"message"`
	Token   string            `json:"token,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
}

// DecodeEnvelope decodes the response into an Envelope.
func (r *Response) DecodeEnvelope() (*Envelope, error) {
	var env Envelope
	if err := r.Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeList extracts a list from a response that is either a bare JSON
// array or an object wrapping it under "data" (possibly "data.data" for
// paginated listings). A null or missing list decodes to an empty slice.
func DecodeList[T any](r *Response) ([]T, error) {
	if !r.JSON {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedFormat, truncate(string(r.Body), 120))
	}
	raw := bytes.TrimSpace(r.Body)

	for depth := 0; depth < 3; depth++ {
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return []T{}, nil
		}
		if raw[0] == '[' {
			var out []T
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
			}
			return out, nil
		}
		if raw[0] != '{' {
			break
		}
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		raw = bytes.TrimSpace(wrapper.Data)
	}
	return nil, fmt.Errorf("%w: expected a list", ErrUnexpectedFormat)
}

// DecodeData decodes the "data" member of an envelope into dst, falling back
// to the whole body when there is no data member.
func DecodeData(r *Response, dst any) error {
	env, err := r.DecodeEnvelope()
	if err != nil {
		return err
	}
	src := env.Data
	if len(bytes.TrimSpace(src)) == 0 || bytes.Equal(bytes.TrimSpace(src), []byte("null")) {
		src = r.Body
	}
	if err := json.Unmarshal(src, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}
	return nil
}

// Ack checks a mutation envelope. A false status becomes a REQUEST_FAILED
// domain error carrying the backend message; on success the backend message
// is returned, or okMessage when there is none.
func (r *Response) Ack(okMessage string) (string, error) {
	env, err := r.DecodeEnvelope()
	if err != nil {
		return "", err
	}
	msg := env.Message.String()
	if !bool(env.Status) {
		if msg == "" {
			msg = shared.ErrRequestFailed.Message
		}
		return "", shared.NewDomainError(shared.ErrRequestFailed.Code, msg)
	}
	if msg == "" {
		msg = okMessage
	}
	return msg, nil
}
