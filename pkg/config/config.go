// Package config loads the Nature Remo integration settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingToken indicates no Nature Remo access token was configured.
var ErrMissingToken = errors.New("nature remo access token is not set")

// Config represents the integration configuration.
type Config struct {
	Remo        RemoConfig        `yaml:"remo"`
	ToggleLight ToggleLightConfig `yaml:"togglelight"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Profile     string            `yaml:"profile"`
}

// RemoConfig contains Nature Remo cloud settings.
type RemoConfig struct {
	AccessToken    string   `yaml:"access_token"`
	BaseURL        string   `yaml:"base_url"`
	Timeout        Duration `yaml:"timeout"`          // HTTP timeout per request
	PollInterval   Duration `yaml:"poll_interval"`    // Appliance refresh interval
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`   // Sustained request rate (default: 0.1)
	RateLimitBurst int      `yaml:"rate_limit_burst"` // Burst size (default: 5)
}

// ToggleLightConfig selects which IR appliance is driven as a toggle light.
type ToggleLightConfig struct {
	Name   string   `yaml:"name"`   // Appliance nickname, matched case-insensitively
	Button string   `yaml:"button"` // Learned signal name that toggles the light
	Delay  Duration `yaml:"delay"`  // Pause between the two presses that turn it off
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
// Plain integers are read as milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if ms, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. An empty path yields the
// defaults, with the access token taken from NATURE_REMO_TOKEN.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Parse decodes YAML data into cfg after expanding environment variables.
func Parse(data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

func (cfg *Config) applyDefaults() {
	if cfg.Remo.AccessToken == "" {
		cfg.Remo.AccessToken = os.Getenv("NATURE_REMO_TOKEN")
	}
	if cfg.Remo.Timeout == 0 {
		cfg.Remo.Timeout = Duration(10 * time.Second)
	}
	if cfg.Remo.PollInterval == 0 {
		cfg.Remo.PollInterval = Duration(60 * time.Second)
	}
	if cfg.Remo.RateLimitRPS == 0 {
		cfg.Remo.RateLimitRPS = 0.1 // 30 requests per 5 minutes
	}
	if cfg.Remo.RateLimitBurst == 0 {
		cfg.Remo.RateLimitBurst = 5
	}

	if cfg.ToggleLight.Button == "" {
		cfg.ToggleLight.Button = "toggle"
	}
	if cfg.ToggleLight.Delay == 0 {
		cfg.ToggleLight.Delay = Duration(500 * time.Millisecond)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks the settings needed to talk to the cloud.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Remo.AccessToken) == "" {
		return ErrMissingToken
	}
	if cfg.Remo.PollInterval.Duration() < 10*time.Second {
		return fmt.Errorf("remo.poll_interval must be at least 10s, got %s", cfg.Remo.PollInterval.Duration())
	}
	if cfg.ToggleLight.Delay < 0 {
		return fmt.Errorf("togglelight.delay must not be negative")
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
