// Package api holds the wire types of the collaborator backend and the
// canonical response envelope. The backend is inconsistent about its envelope:
// some endpoints wrap the payload in "result", some in "data", and a few
// return a bare array. DecodeEnvelope normalizes all three shapes exactly once
// so the rest of the module never sees the difference.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Result  json.RawMessage `json:"result"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// DecodeEnvelope extracts the payload bytes from a response body.
func DecodeEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	// Bare arrays are a payload on their own.
	if trimmed[0] == '[' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("malformed response envelope: %w", err)
	}

	switch {
	case len(env.Result) > 0 && !bytes.Equal(env.Result, []byte("null")):
		return env.Result, nil
	case len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")):
		return env.Data, nil
	}

	// No envelope key present, treat the whole object as the payload.
	return trimmed, nil
}

// DecodeInto unwraps the envelope and unmarshals the payload into v.
func DecodeInto(body []byte, v any) error {
	payload, err := DecodeEnvelope(body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("malformed response payload: %w", err)
	}

	return nil
}

// ErrorMessage pulls the backend's error message out of a failure body, if
// one is present.
func ErrorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil {
		return ""
	}
	return env.Message
}
