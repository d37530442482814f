package loadtest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
)

const (
	// DefaultBaseURL is the target used when none is configured
	DefaultBaseURL = "http://localhost:8000"
	// DefaultUsers is the default number of concurrent virtual users
	DefaultUsers = 20
	// DefaultDuration is the default run length
	DefaultDuration = 30 * time.Second
	// DefaultRequestTimeout bounds every workload request
	DefaultRequestTimeout = 30 * time.Second
	// DefaultProbeTimeout bounds the preflight health probe
	DefaultProbeTimeout = 5 * time.Second
	// DefaultProgressInterval is how often progress is logged during a run
	DefaultProgressInterval = 5 * time.Second

	// MaxUsers caps the virtual user population
	MaxUsers = 10000
)

// ErrInvalidConfig is returned when a Config fails validation
var ErrInvalidConfig = errors.New("invalid config")

// Workload names a workload pattern a virtual user runs
type Workload string

const (
	WorkloadMixed  Workload = "mixed"
	WorkloadBrowse Workload = "browse"
	WorkloadRead   Workload = "read"
	WorkloadWrite  Workload = "write"
	WorkloadTasks  Workload = "tasks"
)

// Workloads lists every accepted workload name in CLI order
var Workloads = []Workload{WorkloadMixed, WorkloadBrowse, WorkloadRead, WorkloadWrite, WorkloadTasks}

// ParseWorkload validates a workload name. Unknown names get a suggestion
// for the closest known workload when one exists.
func ParseWorkload(name string) (Workload, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	names := make([]string, len(Workloads))
	for i, w := range Workloads {
		if string(w) == name {
			return w, nil
		}
		names[i] = string(w)
	}

	if matches := fuzzy.Find(name, names); len(matches) > 0 && name != "" {
		return "", fmt.Errorf("%w: unknown workload %q (did you mean %q?)", ErrInvalidConfig, name, matches[0].Str)
	}
	return "", fmt.Errorf("%w: unknown workload %q (choose one of %s)", ErrInvalidConfig, name, strings.Join(names, ", "))
}

// Preset is a named users/duration override
type Preset string

const (
	PresetNone   Preset = ""
	PresetQuick  Preset = "quick"
	PresetStress Preset = "stress"
)

// SelectPreset maps the preset flags to a Preset. Quick wins when both are set.
func SelectPreset(quick, stress bool) Preset {
	switch {
	case quick:
		return PresetQuick
	case stress:
		return PresetStress
	default:
		return PresetNone
	}
}

// Config describes one load test run
type Config struct {
	BaseURL  string
	Users    int
	Duration time.Duration
	Workload Workload

	RequestTimeout   time.Duration // Per-request timeout (default: 30s)
	ProbeTimeout     time.Duration // Preflight timeout (default: 5s)
	MaxRPS           float64       // Global request rate cap, 0 = unlimited
	Seed             uint64        // Random seed, 0 = time based
	ProgressInterval time.Duration // 0 disables progress logging
}

// DefaultConfig returns the CLI defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		Users:            DefaultUsers,
		Duration:         DefaultDuration,
		Workload:         WorkloadMixed,
		RequestTimeout:   DefaultRequestTimeout,
		ProbeTimeout:     DefaultProbeTimeout,
		ProgressInterval: DefaultProgressInterval,
	}
}

// ApplyPreset overrides users and duration. Presets win over explicit values.
func (c *Config) ApplyPreset(p Preset) {
	switch p {
	case PresetQuick:
		c.Users = 10
		c.Duration = 15 * time.Second
	case PresetStress:
		c.Users = 100
		c.Duration = 60 * time.Second
	}
}

// Validate validates the load test configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base url must use http or https, got %q", ErrInvalidConfig, c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: base url has no host: %q", ErrInvalidConfig, c.BaseURL)
	}
	if c.Users <= 0 {
		return fmt.Errorf("%w: users must be greater than 0", ErrInvalidConfig)
	}
	if c.Users > MaxUsers {
		return fmt.Errorf("%w: users cannot exceed %d", ErrInvalidConfig, MaxUsers)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be greater than 0", ErrInvalidConfig)
	}
	if _, err := ParseWorkload(string(c.Workload)); err != nil {
		return err
	}
	if c.RequestTimeout < 0 || c.ProbeTimeout < 0 {
		return fmt.Errorf("%w: timeouts cannot be negative", ErrInvalidConfig)
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("%w: max rps cannot be negative", ErrInvalidConfig)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("%w: progress interval cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// GetRequestTimeout returns the request timeout, falling back to the default
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// GetProbeTimeout returns the preflight timeout, falling back to the default
func (c *Config) GetProbeTimeout() time.Duration {
	if c.ProbeTimeout == 0 {
		return DefaultProbeTimeout
	}
	return c.ProbeTimeout
}
