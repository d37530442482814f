package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second

	// maxLoggedBody caps response bodies written to debug logs
	maxLoggedBody = 512
)

// Executor issues single HTTP requests against the target and records every
// outcome in the run's aggregate
type Executor struct {
	baseURL    string
	httpClient *http.Client
	aggregate  *Aggregate
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// NewExecutor creates an executor that records into agg. A nil client gets a
// pooled client sized for the configured number of users.
func NewExecutor(cfg Config, agg *Aggregate, client *http.Client, logger *zap.Logger) *Executor {
	if client == nil {
		client = buildLoadTestHTTPClient(cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		baseURL:    cfg.BaseURL,
		httpClient: client,
		aggregate:  agg,
		logger:     logger,
		now:        time.Now,
	}
	if cfg.MaxRPS > 0 {
		burst := int(cfg.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return e
}

// Execute performs one request and records its result. Transport failures
// are returned as results with status 0, never as errors. Requests aborted
// because ctx was cancelled are returned but not recorded.
func (e *Executor) Execute(ctx context.Context, req Request) RequestResult {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return newTransportFailure(req, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	start := e.now()
	status, body, err := e.do(ctx, req)
	latency := e.now().Sub(start)
	if latency < 0 {
		latency = 0
	}

	var result RequestResult
	if err != nil {
		result = newTransportFailure(req, latency, err)
		if ctx.Err() != nil {
			return result
		}
		e.logger.Debug("request failed",
			zap.String("endpoint", result.Endpoint),
			zap.String("kind", string(ClassifyError(err))),
			zap.Error(err))
	} else {
		result = newResult(req, status, latency)
		e.logBody(result, body)
	}

	e.aggregate.Record(result)
	return result
}

// do sends the request and reads the full response body
func (e *Executor) do(ctx context.Context, req Request) (int, []byte, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), joinURL(e.baseURL, req.Path), bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// logBody decodes the response as JSON, falling back to raw text, and writes
// it to the debug log
func (e *Executor) logBody(result RequestResult, body []byte) {
	ce := e.logger.Check(zap.DebugLevel, "response")
	if ce == nil {
		return
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		ce.Write(
			zap.String("endpoint", result.Endpoint),
			zap.Int("status", result.StatusCode),
			zap.Duration("latency", result.Latency),
			zap.Any("json", decoded))
		return
	}

	text := string(body)
	if len(text) > maxLoggedBody {
		text = text[:maxLoggedBody] + "..."
	}
	ce.Write(
		zap.String("endpoint", result.Endpoint),
		zap.Int("status", result.StatusCode),
		zap.Duration("latency", result.Latency),
		zap.String("text", text))
}

// buildLoadTestHTTPClient creates an HTTP client optimized for load testing
// with connection pooling, timeouts, and resource limits
func buildLoadTestHTTPClient(cfg Config) *http.Client {
	conns := cfg.Users
	if conns <= 0 {
		conns = DefaultUsers
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        conns,
		MaxIdleConnsPerHost: conns,
		MaxConnsPerHost:     conns * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.GetRequestTimeout(),
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   cfg.GetRequestTimeout(),
		Transport: transport,
	}
}

// joinURL appends an absolute path to a base url without doubling slashes
func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + path
}
