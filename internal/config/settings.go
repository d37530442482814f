package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/studiowebux/loadtest/internal/loadtest"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadEnv
const EnvPrefix = "LOADTEST_"

// Settings is one configuration layer. A nil field is unset and leaves the
// lower layer's value in place.
type Settings struct {
	URL      *string  `json:"url,omitempty" yaml:"url,omitempty" env:"URL"`
	Users    *int     `json:"users,omitempty" yaml:"users,omitempty" env:"USERS"`
	Duration *int     `json:"duration,omitempty" yaml:"duration,omitempty" env:"DURATION"` // seconds
	Workload *string  `json:"workload,omitempty" yaml:"workload,omitempty" env:"WORKLOAD"`
	Timeout  *float64 `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"` // seconds
	MaxRPS   *float64 `json:"max_rps,omitempty" yaml:"max_rps,omitempty" env:"MAX_RPS"`
	Seed     *uint64  `json:"seed,omitempty" yaml:"seed,omitempty" env:"SEED"`
	Progress *float64 `json:"progress,omitempty" yaml:"progress,omitempty" env:"PROGRESS"` // seconds, 0 disables

	Output      *string `json:"output,omitempty" yaml:"output,omitempty" env:"OUTPUT"`
	DB          *string `json:"db,omitempty" yaml:"db,omitempty" env:"DB"`
	MetricsAddr *string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" env:"METRICS_ADDR"`
	LogLevel    *string `json:"log_level,omitempty" yaml:"log_level,omitempty" env:"LOG_LEVEL"`
	LogFormat   *string `json:"log_format,omitempty" yaml:"log_format,omitempty" env:"LOG_FORMAT"`
}

// LoadFile reads a settings file. The format follows the extension:
// .yaml/.yml, .json or .jsonc (JSON with comments and trailing commas).
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var s Settings

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, .json or .jsonc)", ext)
	}

	return &s, nil
}

// LoadEnv reads LOADTEST_* variables. A nil environ reads the process
// environment.
func LoadEnv(environ map[string]string) (*Settings, error) {
	var s Settings
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &s, nil
}

// Merge layers other on top of s. Set fields in other win.
func (s *Settings) Merge(other *Settings) {
	if other == nil {
		return
	}
	mergeField(&s.URL, other.URL)
	mergeField(&s.Users, other.Users)
	mergeField(&s.Duration, other.Duration)
	mergeField(&s.Workload, other.Workload)
	mergeField(&s.Timeout, other.Timeout)
	mergeField(&s.MaxRPS, other.MaxRPS)
	mergeField(&s.Seed, other.Seed)
	mergeField(&s.Progress, other.Progress)
	mergeField(&s.Output, other.Output)
	mergeField(&s.DB, other.DB)
	mergeField(&s.MetricsAddr, other.MetricsAddr)
	mergeField(&s.LogLevel, other.LogLevel)
	mergeField(&s.LogFormat, other.LogFormat)
}

func mergeField[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Resolve merges layers from lowest to highest precedence
func Resolve(layers ...*Settings) Settings {
	var s Settings
	for _, layer := range layers {
		s.Merge(layer)
	}
	return s
}

// LoadTestConfig applies the settings over the run defaults and then the
// preset, which overrides users and duration.
func (s Settings) LoadTestConfig(preset loadtest.Preset) (loadtest.Config, error) {
	cfg := loadtest.DefaultConfig()

	if s.URL != nil {
		cfg.BaseURL = *s.URL
	}
	if s.Users != nil {
		cfg.Users = *s.Users
	}
	if s.Duration != nil {
		cfg.Duration = time.Duration(*s.Duration) * time.Second
	}
	if s.Workload != nil {
		w, err := loadtest.ParseWorkload(*s.Workload)
		if err != nil {
			return cfg, err
		}
		cfg.Workload = w
	}
	if s.Timeout != nil {
		cfg.RequestTimeout = seconds(*s.Timeout)
	}
	if s.MaxRPS != nil {
		cfg.MaxRPS = *s.MaxRPS
	}
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	if s.Progress != nil {
		cfg.ProgressInterval = seconds(*s.Progress)
	}

	cfg.ApplyPreset(preset)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// String returns the value of an optional string setting or def when unset
func String(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
