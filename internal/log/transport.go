package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Transport is an http.RoundTripper that logs every outbound call.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil) with call logging
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = Default(ComponentRemote)
	}
	return &Transport{Base: base, Logger: logger}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	durationMs := time.Since(start).Milliseconds()

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	fields := NewFields().
		WithHTTP(req.Method, req.URL.Redacted(), status, durationMs).
		WithRequestID(req.Header.Get("X-Request-ID"))

	ctx := req.Context()
	switch {
	case err != nil:
		t.Logger.WarnContext(ctx, "Remote call failed", fields.WithError(err).ToSlice()...)
	case status >= 500:
		t.Logger.WarnContext(ctx, "Remote call returned server error", fields.ToSlice()...)
	default:
		t.Logger.DebugContext(ctx, "Remote call completed", fields.ToSlice()...)
	}
	return resp, err
}
