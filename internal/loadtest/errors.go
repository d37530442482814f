package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// FailureKind classifies a transport failure
type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureRefused  FailureKind = "connection_refused"
	FailureDNS      FailureKind = "dns"
	FailureReset    FailureKind = "connection_reset"
	FailureTLS      FailureKind = "tls"
	FailureCanceled FailureKind = "canceled"
	FailureOther    FailureKind = "other"
)

// hints are operator-facing explanations keyed by failure kind
var hints = map[FailureKind]string{
	FailureTimeout:  "request timed out - the target may be overloaded or the timeout too short",
	FailureRefused:  "connection refused - check that the application is running and the port is correct",
	FailureDNS:      "DNS resolution failed - verify the hostname in --url",
	FailureReset:    "connection reset by server - the target may have crashed or dropped the connection",
	FailureTLS:      "TLS handshake or certificate error - check the scheme and certificates of --url",
	FailureCanceled: "request cancelled",
	FailureOther:    "request failed",
}

// Hint returns a short operator-facing explanation of the failure kind
func (k FailureKind) Hint() string {
	if h, ok := hints[k]; ok {
		return h
	}
	return hints[FailureOther]
}

// ClassifyError maps a transport error to a FailureKind. It prefers typed
// checks and falls back to matching the error text.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return FailureReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureDNS
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	return classifyErrorText(err.Error())
}

// classifyErrorText categorizes an error by its message
func classifyErrorText(errStr string) FailureKind {
	errLower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errLower, "context canceled"):
		return FailureCanceled
	case strings.Contains(errLower, "deadline exceeded"),
		strings.Contains(errLower, "timeout"),
		strings.Contains(errLower, "timed out"):
		return FailureTimeout
	case strings.Contains(errLower, "no such host"),
		strings.Contains(errLower, "dial tcp: lookup"):
		return FailureDNS
	case strings.Contains(errLower, "connection refused"):
		return FailureRefused
	case strings.Contains(errLower, "connection reset"):
		return FailureReset
	case strings.Contains(errLower, "tls"),
		strings.Contains(errLower, "x509"),
		strings.Contains(errLower, "certificate"):
		return FailureTLS
	}
	return FailureOther
}

// PreflightError is returned when the health probe fails before a run starts
type PreflightError struct {
	URL    string
	Status int   // Set when the target answered with a server error
	Err    error // Set when the target could not be reached
}

func (e *PreflightError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot connect to %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("application at %s returned status %d", e.URL, e.Status)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the multi-line message shown to the operator
func (e *PreflightError) Diagnostic() string {
	if e.Err != nil {
		return fmt.Sprintf("Error: Cannot connect to %s\n   %s\n   Make sure the application is running before starting a load test.",
			e.URL, ClassifyError(e.Err).Hint())
	}
	return fmt.Sprintf("Error: Application returned status %d\n   The target at %s is unhealthy; no load test was run.",
		e.Status, e.URL)
}
