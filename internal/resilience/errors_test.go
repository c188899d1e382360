package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("server overloaded"), 503), true},
		{"wrapped transient", fmt.Errorf("geofence call failed: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"deadline exceeded", fmt.Errorf("query locations: %w", context.DeadlineExceeded), true},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"connection aborted", fmt.Errorf("accept tcp: %w", syscall.ECONNABORTED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"postgres starting up", errors.New("FATAL: the database system is starting up"), true},
		{"postgres saturated", errors.New("FATAL: too many connections"), true},
		{"pgx conn busy", errors.New("conn busy"), true},
		{"sqlite locked", errors.New("database is locked"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"tls timeout", errors.New("net/http: TLS handshake timeout"), true},
		{"io timeout", errors.New("read tcp: i/o timeout"), true},
		{"no such host", errors.New("dial tcp: lookup registry.example: no such host"), true},
		{"validation error", errors.New("invalid input: missing field"), false},
		{"sql syntax error", errors.New(`syntax error at or near "FORM"`), false},
		{"constraint violation", errors.New("duplicate key value violates unique constraint"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "HTTP %d should be transient", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 405, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "HTTP %d should not be transient", code)
	}
}

func TestTransientError(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 500, te.StatusCode)
	assert.Equal(t, "root cause", te.Error())
}
