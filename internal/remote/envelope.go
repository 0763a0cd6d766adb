// Package remote defines the ports to the finance API and the uniform
// response envelope every endpoint returns.
package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// CodeOK is the only envelope code that signals success.
const CodeOK = 200

// Error categories shared with the repository layer.
var (
	ErrTransport     = errors.New("transport failure")
	ErrServer        = errors.New("server error")
	ErrShapeMismatch = errors.New("response shape mismatch")
)

// ServerError is a non-success envelope.
type ServerError struct {
	Code int
	Msg  string
}

func (e *ServerError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("server error: code %d", e.Code)
	}
	return fmt.Sprintf("server error: code %d: %s", e.Code, e.Msg)
}

func (e *ServerError) Unwrap() error { return ErrServer }

// Envelope is the wire wrapper around every response. Data and Rows are
// kept raw because the server is inconsistent about which one it fills.
type Envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data,omitempty"`
	Total int64           `json:"total"`
	Rows  json.RawMessage `json:"rows,omitempty"`
}

// OK builds a success envelope around data.
func OK(data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode envelope data: %w", err)
	}
	return &Envelope{Code: CodeOK, Msg: "success", Data: raw}, nil
}

// Page builds a success envelope carrying rows.
func Page(rows any, total int) (*Envelope, error) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode envelope rows: %w", err)
	}
	return &Envelope{Code: CodeOK, Msg: "success", Rows: raw, Total: int64(total)}, nil
}

// Fail builds a non-success envelope.
func Fail(code int, msg string) *Envelope {
	return &Envelope{Code: code, Msg: msg}
}

// Err returns nil for success envelopes and a *ServerError otherwise.
func (e *Envelope) Err() error {
	if e == nil {
		return fmt.Errorf("%w: empty response", ErrTransport)
	}
	if e.Code != CodeOK {
		return &ServerError{Code: e.Code, Msg: e.Msg}
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
