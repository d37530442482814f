package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8000
)

const jsonContentType = "application/json"

// DefaultConfig returns the demo application's routes: the browse pages,
// the users/posts collections and the task trigger.
func DefaultConfig() *Config {
	jsonHeaders := map[string]string{"Content-Type": jsonContentType}
	page := func(path, message string) Route {
		return Route{
			Method:  http.MethodGet,
			Path:    path,
			Status:  http.StatusOK,
			Headers: jsonHeaders,
			Body:    fmt.Sprintf(`{"message": %q}`, message),
		}
	}

	return &Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Logging: true,
		Routes: []Route{
			page("/", "ok"),
			page("/hello/", "Hello, world!"),
			page("/sync/", "sync view"),
			page("/async/", "async view"),
			page("/celery/", "celery task queued"),
			{Method: http.MethodGet, Path: "/api/users/", Status: http.StatusOK, Headers: jsonHeaders, Body: `{"count": 0, "results": []}`},
			{Method: http.MethodPost, Path: "/api/users/", Status: http.StatusCreated, Headers: jsonHeaders, Echo: true},
			{Method: http.MethodGet, Path: "/api/posts/", Status: http.StatusOK, Headers: jsonHeaders, Body: `{"count": 0, "results": []}`},
			{Method: http.MethodPost, Path: "/api/posts/", Status: http.StatusCreated, Headers: jsonHeaders, Echo: true},
			{Method: http.MethodPost, Path: "/api/tasks/trigger/", Status: http.StatusAccepted, Headers: jsonHeaders, Body: `{"status": "queued"}`},
		},
	}
}

// LoadConfig loads a mock configuration from a .yaml, .yml, .json or .jsonc file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, .json or .jsonc)", ext)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// validateConfig validates the mock configuration
func validateConfig(config *Config) error {
	if len(config.Routes) == 0 {
		return fmt.Errorf("no routes defined")
	}
	if config.ErrorRate < 0 || config.ErrorRate > 1 {
		return fmt.Errorf("errorRate must be between 0 and 1")
	}
	if config.Delay < 0 || config.Jitter < 0 {
		return fmt.Errorf("delay and jitter cannot be negative")
	}

	for i, route := range config.Routes {
		if route.Method == "" {
			return fmt.Errorf("route %d: method is required", i)
		}
		if route.Path == "" {
			return fmt.Errorf("route %d: path is required", i)
		}
		if route.PathType != "" && route.PathType != "exact" && route.PathType != "prefix" && route.PathType != "regex" {
			return fmt.Errorf("route %d: pathType must be 'exact', 'prefix', or 'regex'", i)
		}
	}

	return nil
}
