// Package config handles the harness workspace configuration (config.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/testlab-dev/appharness/pkg/core"
)

// Documented defaults. Any knob can be overridden per call via the option
// structs of the consuming packages; zero values fall back to these.
const (
	DefaultPollInterval    = 1000 * time.Millisecond
	DefaultSearchTimeout   = 10 * time.Second
	DefaultEventTimeout    = 15 * time.Second
	DefaultPreDelay        = 0 * time.Second
	DefaultScrollCount     = 0
	DefaultScrollDirection = "down"
)

// DefaultScrollCapacity is the fraction of the scrollable extent one scroll
// gesture traverses.
const DefaultScrollCapacity = 1.0

// Config represents the workspace configuration.
type Config struct {
	// Target
	Platform string `yaml:"platform"` // android | ios
	AppID    string `yaml:"appId"`    // package name / bundle id
	Device   string `yaml:"device"`   // serial / udid

	// Collaborators
	ServerURL     string `yaml:"serverUrl"`     // WebDriver automation server
	TelemetryPort int    `yaml:"telemetryPort"` // local event receiver port

	// Timeouts (milliseconds in YAML)
	PollIntervalMs  int `yaml:"pollIntervalMs"`
	SearchTimeoutMs int `yaml:"searchTimeoutMs"`
	EventTimeoutMs  int `yaml:"eventTimeoutMs"`
	PreDelayMs      int `yaml:"preDelayMs"`

	// Scroll defaults
	ScrollCount     int     `yaml:"scrollCount"`
	ScrollCapacity  float64 `yaml:"scrollCapacity"`
	ScrollDirection string  `yaml:"scrollDirection"`

	// Environment passed to scenario scripts
	Env map[string]string `yaml:"env"`
}

// Load loads configuration from a file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
// A missing file yields the default configuration, not an error.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset knobs with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = int(DefaultPollInterval / time.Millisecond)
	}
	if c.SearchTimeoutMs <= 0 {
		c.SearchTimeoutMs = int(DefaultSearchTimeout / time.Millisecond)
	}
	if c.EventTimeoutMs <= 0 {
		c.EventTimeoutMs = int(DefaultEventTimeout / time.Millisecond)
	}
	if c.PreDelayMs < 0 {
		c.PreDelayMs = 0
	}
	if c.ScrollCount < 0 {
		c.ScrollCount = DefaultScrollCount
	}
	if c.ScrollCapacity == 0 {
		c.ScrollCapacity = DefaultScrollCapacity
	}
	if c.ScrollDirection == "" {
		c.ScrollDirection = DefaultScrollDirection
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:4723"
	}
	if c.TelemetryPort == 0 {
		c.TelemetryPort = 8123
	}
}

// Validate checks the knobs that cannot be defaulted away.
func (c *Config) Validate() error {
	if !core.ParsePlatform(c.Platform).Valid() {
		return core.ErrInvalidOption.WithMessage("platform must be android or ios, got %q", c.Platform)
	}
	if c.ScrollCapacity <= 0 || c.ScrollCapacity > 1 {
		return core.ErrInvalidScrollCapacity.WithDetails(map[string]interface{}{
			"capacity": c.ScrollCapacity,
		})
	}
	return nil
}

// TargetPlatform returns the parsed platform.
func (c *Config) TargetPlatform() core.Platform {
	return core.ParsePlatform(c.Platform)
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SearchTimeout returns the element search timeout as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMs) * time.Millisecond
}

// EventTimeout returns the event wait timeout as a duration.
func (c *Config) EventTimeout() time.Duration {
	return time.Duration(c.EventTimeoutMs) * time.Millisecond
}

// PreDelay returns the UI settle pre-wait as a duration.
func (c *Config) PreDelay() time.Duration {
	return time.Duration(c.PreDelayMs) * time.Millisecond
}
