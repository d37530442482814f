package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, ""},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), FailureCanceled},
		{"deadline", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, FailureTimeout},
		{"refused", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, FailureRefused},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), FailureReset},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, FailureDNS},
		{"tls text", errors.New("x509: certificate signed by unknown authority"), FailureTLS},
		{"timeout text", errors.New("net/http: request canceled (Client.Timeout exceeded while awaiting headers)"), FailureTimeout},
		{"other", errors.New("boom"), FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestFailureKind_Hint(t *testing.T) {
	assert.Contains(t, FailureRefused.Hint(), "connection refused")
	assert.Equal(t, FailureOther.Hint(), FailureKind("unknown").Hint())
}

func TestPreflightError(t *testing.T) {
	unreachable := &PreflightError{URL: "http://localhost:8000", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}
	assert.ErrorIs(t, unreachable, syscall.ECONNREFUSED)
	assert.Contains(t, unreachable.Error(), "cannot connect to http://localhost:8000")
	assert.Contains(t, unreachable.Diagnostic(), "Error: Cannot connect to http://localhost:8000")
	assert.Contains(t, unreachable.Diagnostic(), "check that the application is running")

	unhealthy := &PreflightError{URL: "http://localhost:8000", Status: 503}
	assert.Nil(t, unhealthy.Unwrap())
	assert.Equal(t, "application at http://localhost:8000 returned status 503", unhealthy.Error())
	assert.Contains(t, unhealthy.Diagnostic(), "Error: Application returned status 503")
}

func TestStatusRules(t *testing.T) {
	assert.False(t, IsSuccessStatus(0))
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(302))
	assert.False(t, IsSuccessStatus(400))
	assert.False(t, IsSuccessStatus(500))

	assert.True(t, IsServerErrorStatus(503))
	assert.False(t, IsServerErrorStatus(404))
}
