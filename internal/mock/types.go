package mock

import "time"

// Config represents the mock target configuration
type Config struct {
	Port      int     `json:"port" yaml:"port"`                                 // Server port (default: 8000)
	Host      string  `json:"host" yaml:"host"`                                 // Server host (default: localhost)
	Routes    []Route `json:"routes" yaml:"routes"`                             // Route definitions
	Delay     int     `json:"delay,omitempty" yaml:"delay,omitempty"`           // Base delay in milliseconds for every route
	Jitter    int     `json:"jitter,omitempty" yaml:"jitter,omitempty"`         // Extra random delay in milliseconds, [0, jitter)
	ErrorRate float64 `json:"errorRate,omitempty" yaml:"errorRate,omitempty"`   // Fraction of requests answered with 500, [0, 1]
	Logging   bool    `json:"logging" yaml:"logging"`                           // Keep a request log
	Seed      uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`             // Seed for jitter and error injection, 0 = time based
}

// Route represents a mock route configuration
type Route struct {
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`         // Route description
	Method   string            `json:"method" yaml:"method"`                         // HTTP method (GET, POST, etc.)
	Path     string            `json:"path" yaml:"path"`                             // URL path pattern
	PathType string            `json:"pathType,omitempty" yaml:"pathType,omitempty"` // exact, prefix, regex (default: exact)
	Status   int               `json:"status" yaml:"status"`                         // HTTP status code
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`   // Response headers
	Body     string            `json:"body,omitempty" yaml:"body,omitempty"`         // Response body
	Echo     bool              `json:"echo,omitempty" yaml:"echo,omitempty"`         // Respond with the request body
	Delay    int               `json:"delay,omitempty" yaml:"delay,omitempty"`       // Route delay in milliseconds, added to the base delay
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp   time.Time     `json:"timestamp"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	MatchedRule string        `json:"matchedRule"`
	Status      int           `json:"status"`
	Duration    time.Duration `json:"duration"`
}
