package mock

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxLogs bounds the request log
const maxLogs = 1000

// Server represents the mock target server
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
	patterns   map[int]*regexp.Regexp

	logs      []RequestLog
	hits      map[string]int
	logsMutex sync.RWMutex

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewServer creates a new mock server. A nil logger disables logging.
func NewServer(config *Config, logger *zap.Logger) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Host == "" {
		config.Host = DefaultHost
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	patterns := make(map[int]*regexp.Regexp)
	for i, route := range config.Routes {
		if route.PathType != "regex" {
			continue
		}
		re, err := regexp.Compile(route.Path)
		if err != nil {
			return nil, fmt.Errorf("route %d: invalid regex %q: %w", i, route.Path, err)
		}
		patterns[i] = re
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Server{
		config:   config,
		logger:   logger,
		patterns: patterns,
		logs:     make([]RequestLog, 0),
		hits:     make(map[string]int),
		rng:      rand.New(rand.NewPCG(seed, 0)),
	}, nil
}

// Handler returns the HTTP handler serving the configured routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("mock server error", zap.Error(err))
		}
	}()

	s.logger.Info("mock server listening", zap.String("address", s.GetAddress()))
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleRequest handles incoming HTTP requests
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestBody, _ := io.ReadAll(r.Body)
	r.Body.Close()

	route := s.findMatchingRoute(r.Method, r.URL.Path)

	var status int
	var responseBody []byte
	var matchedRule string

	if route == nil {
		status = http.StatusNotFound
		responseBody = fmt.Appendf(nil, "Mock server: No route configured for %s %s", r.Method, r.URL.Path)
		matchedRule = "none"
	} else {
		matchedRule = route.Name
		if matchedRule == "" {
			matchedRule = fmt.Sprintf("%s %s", route.Method, route.Path)
		}

		delay, fail := s.roll(route)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if fail {
			status = http.StatusInternalServerError
			responseBody = []byte(`{"error": "injected failure"}`)
			w.Header().Set("Content-Type", jsonContentType)
		} else {
			status = route.Status
			if status == 0 {
				status = http.StatusOK
			}
			for key, value := range route.Headers {
				w.Header().Set(key, value)
			}
			responseBody = []byte(route.Body)
			if route.Echo {
				responseBody = requestBody
			}
		}
	}

	w.WriteHeader(status)
	w.Write(responseBody)

	s.record(RequestLog{
		Timestamp:   start,
		Method:      r.Method,
		Path:        r.URL.Path,
		MatchedRule: matchedRule,
		Status:      status,
		Duration:    time.Since(start),
	})
}

// roll picks the response delay and whether to inject a failure
func (s *Server) roll(route *Route) (time.Duration, bool) {
	delay := time.Duration(s.config.Delay+route.Delay) * time.Millisecond

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	if s.config.Jitter > 0 {
		delay += time.Duration(s.rng.IntN(s.config.Jitter)) * time.Millisecond
	}
	fail := s.config.ErrorRate > 0 && s.rng.Float64() < s.config.ErrorRate
	return delay, fail
}

// findMatchingRoute finds the first route that matches the method and path
func (s *Server) findMatchingRoute(method, path string) *Route {
	for i := range s.config.Routes {
		route := &s.config.Routes[i]
		if !strings.EqualFold(route.Method, method) {
			continue
		}

		matched := false
		switch route.PathType {
		case "", "exact":
			matched = route.Path == path
		case "prefix":
			matched = strings.HasPrefix(path, route.Path)
		case "regex":
			matched = s.patterns[i].MatchString(path)
		}

		if matched {
			return route
		}
	}

	return nil
}

// record counts the hit and, when enabled, appends to the request log
func (s *Server) record(entry RequestLog) {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.hits[entry.Method+" "+entry.Path]++

	if !s.config.Logging {
		return
	}
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
}

// GetLogs returns a copy of the logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// Hits returns the request count per "METHOD /path"
func (s *Server) Hits() map[string]int {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	hits := make(map[string]int, len(s.hits))
	for k, v := range s.hits {
		hits[k] = v
	}
	return hits
}

// GetAddress returns the server base url
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))
}
