// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "100ms", "60s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
// Strings are parsed with time.ParseDuration; a bare integer is taken as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := parseDuration(value.Value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return parsed, nil
}

// Config holds all monitor configuration.
type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Sampling SamplingConfig `yaml:"sampling"`
	RDMA     RDMAConfig     `yaml:"rdma"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Upload   UploadConfig   `yaml:"upload"`
}

// MonitorConfig holds the session settings.
type MonitorConfig struct {
	Interface        string   `yaml:"interface"`
	Duration         Duration `yaml:"duration"`
	Output           string   `yaml:"output"`
	FallbackPrefixes []string `yaml:"fallback_prefixes"`
}

// SamplingConfig holds sampling loop settings.
// A zero CallTimeout leaves collaborator calls unbounded.
type SamplingConfig struct {
	Interval      Duration `yaml:"interval"`
	CallTimeout   Duration `yaml:"call_timeout"`
	CounterSource string   `yaml:"counter_source"`
	SocketLister  string   `yaml:"socket_lister"`
}

// RDMAConfig holds the tracked UDP ports.
type RDMAConfig struct {
	CMPort     string `yaml:"cm_port"`
	RoCEv2Port string `yaml:"rocev2_port"`
}

// AnalysisConfig holds summary filter settings.
type AnalysisConfig struct {
	OutlierCeilingMbps float64 `yaml:"outlier_ceiling_mbps"`
	ExcludeNegative    bool    `yaml:"exclude_negative"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig holds the Prometheus listener settings. An empty address disables it.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// UploadConfig holds settings for http(s) output targets.
type UploadConfig struct {
	Retries int      `yaml:"retries"`
	Timeout Duration `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interface:        "eth0",
			Duration:         Duration{60 * time.Second},
			Output:           "throughput_data.json",
			FallbackPrefixes: []string{"eth", "en"},
		},
		Sampling: SamplingConfig{
			Interval:      Duration{100 * time.Millisecond},
			CounterSource: "gopsutil",
			SocketLister:  "auto",
		},
		RDMA: RDMAConfig{
			CMPort:     "18515",
			RoCEv2Port: "4791",
		},
		Analysis: AnalysisConfig{
			OutlierCeilingMbps: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Upload: UploadConfig{
			Retries: 3,
			Timeout: Duration{10 * time.Second},
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take precedence over values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	Interface   string
	Duration    time.Duration
	Output      string
	MetricsAddr string
	LogLevel    string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
//
// An explicitly named file that does not exist is an error; a discovered
// path that disappears is skipped.
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	explicit := len(configPath) > 0
	if explicit {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case explicit || !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cli.Interface != "" {
		cfg.Monitor.Interface = cli.Interface
	}
	if cli.Duration != 0 {
		cfg.Monitor.Duration = Duration{cli.Duration}
	}
	if cli.Output != "" {
		cfg.Monitor.Output = cli.Output
	}
	if cli.MetricsAddr != "" {
		cfg.Metrics.ListenAddress = cli.MetricsAddr
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies ROCEMON_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("ROCEMON_INTERFACE"); v != "" {
		cfg.Monitor.Interface = v
	}
	if v := os.Getenv("ROCEMON_DURATION"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("ROCEMON_DURATION: %w", err)
		}
		cfg.Monitor.Duration = Duration{d}
	}
	if v := os.Getenv("ROCEMON_OUTPUT"); v != "" {
		cfg.Monitor.Output = v
	}
	if v := os.Getenv("ROCEMON_COUNTER_SOURCE"); v != "" {
		cfg.Sampling.CounterSource = v
	}
	if v := os.Getenv("ROCEMON_SOCKET_LISTER"); v != "" {
		cfg.Sampling.SocketLister = v
	}
	if v := os.Getenv("ROCEMON_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddress = v
	}
	if v := os.Getenv("ROCEMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks that the configuration can drive a session.
// Upload targets other than localhost must use HTTPS.
func (c *Config) Validate() error {
	if c.Monitor.Interface == "" {
		return fmt.Errorf("monitor interface is required")
	}
	if c.Monitor.Duration.Duration <= 0 {
		return fmt.Errorf("monitor duration must be positive (got: %s)", c.Monitor.Duration)
	}
	if c.Monitor.Duration.Duration%time.Second != 0 {
		return fmt.Errorf("monitor duration must be whole seconds (got: %s)", c.Monitor.Duration)
	}
	if c.Monitor.Output == "" {
		return fmt.Errorf("monitor output is required")
	}
	if c.Sampling.Interval.Duration <= 0 {
		return fmt.Errorf("sampling interval must be positive (got: %s)", c.Sampling.Interval)
	}
	if c.Sampling.CallTimeout.Duration < 0 {
		return fmt.Errorf("sampling call_timeout must not be negative")
	}
	switch c.Sampling.CounterSource {
	case "gopsutil", "procfs":
	default:
		return fmt.Errorf("unknown counter source %q", c.Sampling.CounterSource)
	}
	switch c.Sampling.SocketLister {
	case "auto", "ss", "netstat", "native":
	default:
		return fmt.Errorf("unknown socket lister %q", c.Sampling.SocketLister)
	}
	for name, port := range map[string]string{"cm_port": c.RDMA.CMPort, "rocev2_port": c.RDMA.RoCEv2Port} {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("rdma %s must be a port number (got: %q)", name, port)
		}
	}
	if c.Analysis.OutlierCeilingMbps <= 0 {
		return fmt.Errorf("analysis outlier_ceiling_mbps must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Upload.Retries < 0 {
		return fmt.Errorf("upload retries must not be negative")
	}
	if strings.HasPrefix(c.Monitor.Output, "http://") {
		u, err := url.Parse(c.Monitor.Output)
		if err != nil {
			return fmt.Errorf("invalid upload target %q: %w", c.Monitor.Output, err)
		}
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("upload target must use HTTPS (got: %s)", c.Monitor.Output)
		}
	}
	return nil
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
