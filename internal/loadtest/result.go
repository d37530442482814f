package loadtest

import (
	"net/http"
	"time"
)

// Method is the HTTP method of a workload request. Only GET and POST are issued.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// Request is one call a workload pattern asks the executor to make
type Request struct {
	Method Method
	Path   string // Absolute path appended to the base url
	Body   any    // JSON-encoded for POST, nil for GET
	Key    string // Aggregation key, defaults to Path
}

// key returns the endpoint key samples are recorded under
func (r Request) key() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Path
}

// RequestResult represents the outcome of a single request execution
type RequestResult struct {
	Endpoint   string
	Method     Method
	StatusCode int // 0 when the request never got a response
	Latency    time.Duration
	Success    bool
	Error      string
}

// newResult builds the result for a request that produced a response
func newResult(req Request, status int, latency time.Duration) RequestResult {
	return RequestResult{
		Endpoint:   req.key(),
		Method:     req.Method,
		StatusCode: status,
		Latency:    latency,
		Success:    IsSuccessStatus(status),
	}
}

// newTransportFailure builds the result for a request that got no response
func newTransportFailure(req Request, latency time.Duration, err error) RequestResult {
	return RequestResult{
		Endpoint: req.key(),
		Method:   req.Method,
		Latency:  latency,
		Error:    err.Error(),
	}
}

// IsTransportFailure returns true if no HTTP response was received
func (r RequestResult) IsTransportFailure() bool {
	return r.StatusCode == 0
}

// IsSuccessStatus returns true for a real status code below 400
func IsSuccessStatus(status int) bool {
	return status != 0 && status < 400
}

// IsServerErrorStatus returns true if status code is 5xx
func IsServerErrorStatus(status int) bool {
	return status >= 500 && status < 600
}
