// Package config provides configuration parsing and validation for
// riemann-puppet-ping.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration is read from unless told
// otherwise.
const DefaultPath = "/etc/riemann-puppet-ping.yaml"

// MaxTags is the maximum number of tags attached to events.
const MaxTags = 32

// Config represents the complete agent configuration.
type Config struct {
	RiemannHost string        `yaml:"riemann_host"`
	RiemannPort int           `yaml:"riemann_port"`
	Interval    time.Duration `yaml:"interval"`    // between two sweeps
	Delay       time.Duration `yaml:"delay"`       // added to interval to get event TTL
	Timeout     time.Duration `yaml:"timeout"`     // of a sweep, interval/2 if unset
	ReportsDir  string        `yaml:"reports_dir"` // one directory per host
	Tags        []string      `yaml:"tags"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	MetricsListen string `yaml:"metrics_listen"` // Prometheus exporter, off if empty

	Nameserver      string        `yaml:"nameserver"`        // host:port, system resolver if empty
	ResolveCacheTTL time.Duration `yaml:"resolve_cache_ttl"` // 0 disables the cache
	ResolveRate     float64       `yaml:"resolve_rate"`      // lookups per second, 0 is unlimited

	Mark        uint `yaml:"mark"`         // SO_MARK for probes, 0 leaves it unset
	HistorySize int  `yaml:"history_size"` // sweeps kept per host for metrics
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		RiemannHost: "localhost",
		RiemannPort: 5555,
		Interval:    30 * time.Second,
		Delay:       2 * time.Second,
		ReportsDir:  "/var/lib/puppet/reports",
		Tags:        []string{},
		LogLevel:    "info",
		LogFormat:   "text",
		HistorySize: 10,
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = cfg.Interval / 2
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
// ${VAR:-default} falls back to default, unknown variables are kept as is.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.RiemannHost == "" {
		errs = append(errs, "riemann_host is required")
	}
	if c.RiemannPort < 1 || c.RiemannPort > 65535 {
		errs = append(errs, fmt.Sprintf("riemann_port must be between 1 and 65535, got %d", c.RiemannPort))
	}
	if c.Interval <= 0 {
		errs = append(errs, "interval must be positive")
	}
	if c.Delay < 0 {
		errs = append(errs, "delay must not be negative")
	}
	if c.Timeout <= 0 || c.Timeout > c.Interval {
		errs = append(errs, fmt.Sprintf("timeout must be positive and at most interval (%s)", c.Interval))
	}
	if c.ReportsDir == "" {
		errs = append(errs, "reports_dir is required")
	}
	if len(c.Tags) > MaxTags {
		errs = append(errs, fmt.Sprintf("too many tags: %d (max %d)", len(c.Tags), MaxTags))
	}
	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if !isValidLogFormat(c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", c.LogFormat))
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			errs = append(errs, fmt.Sprintf("invalid metrics_listen: %v", err))
		}
	}
	if c.Nameserver != "" {
		if _, _, err := net.SplitHostPort(c.Nameserver); err != nil {
			errs = append(errs, fmt.Sprintf("invalid nameserver: %v", err))
		}
	}
	if c.ResolveCacheTTL < 0 {
		errs = append(errs, "resolve_cache_ttl must not be negative")
	}
	if c.ResolveRate < 0 {
		errs = append(errs, "resolve_rate must not be negative")
	}
	if c.HistorySize < 1 {
		errs = append(errs, "history_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RiemannAddr returns the host:port of the Riemann server.
func (c *Config) RiemannAddr() string {
	return net.JoinHostPort(c.RiemannHost, strconv.Itoa(c.RiemannPort))
}

// TTL returns the time to live of emitted events.
func (c *Config) TTL() time.Duration {
	return c.Interval + c.Delay
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("error marshaling config: %v", err)
	}
	return string(data)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}
