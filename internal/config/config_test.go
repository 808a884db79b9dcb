package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const embeddedYAML = "monitor:\n  interface: \"ens5\"\n  duration: \"30s\"\n  output: \"embedded.json\"\n"

func TestLoadLayered_CLIOverridesEverything(t *testing.T) {
	t.Setenv("ROCEMON_INTERFACE", "env0")
	cli := CLIOverrides{Interface: "cli0", Duration: 5 * time.Second, Output: "cli.json", LogLevel: "debug"}

	cfg, err := LoadLayered(cli, []byte(embeddedYAML), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.Interface != "cli0" {
		t.Errorf("Interface = %q, want CLI override", cfg.Monitor.Interface)
	}
	if cfg.Monitor.Duration.Duration != 5*time.Second {
		t.Errorf("Duration = %v, want CLI override", cfg.Monitor.Duration)
	}
	if cfg.Monitor.Output != "cli.json" {
		t.Errorf("Output = %q, want CLI override", cfg.Monitor.Output)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want CLI override", cfg.Logging.Level)
	}
}

func TestLoadLayered_EnvOverridesEmbed(t *testing.T) {
	t.Setenv("ROCEMON_INTERFACE", "env0")
	t.Setenv("ROCEMON_DURATION", "90")

	cfg, err := LoadLayered(CLIOverrides{}, []byte(embeddedYAML), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.Interface != "env0" {
		t.Errorf("Interface = %q, want env override", cfg.Monitor.Interface)
	}
	if cfg.Monitor.Duration.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 90s from env", cfg.Monitor.Duration)
	}
	if cfg.Monitor.Output != "embedded.json" {
		t.Errorf("Output = %q, want embedded value", cfg.Monitor.Output)
	}
}

func TestLoadLayered_FileOverridesEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocemon.yaml")
	data := "sampling:\n  interval: 250ms\n  socket_lister: native\nrdma:\n  rocev2_port: \"4792\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(CLIOverrides{}, []byte(embeddedYAML), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sampling.Interval.Duration != 250*time.Millisecond {
		t.Errorf("Interval = %v, want 250ms", cfg.Sampling.Interval)
	}
	if cfg.Sampling.SocketLister != "native" {
		t.Errorf("SocketLister = %q, want native", cfg.Sampling.SocketLister)
	}
	if cfg.RDMA.RoCEv2Port != "4792" || cfg.RDMA.CMPort != "18515" {
		t.Errorf("RDMA = %+v, want file rocev2 port and default cm port", cfg.RDMA)
	}
	if cfg.Monitor.Interface != "ens5" {
		t.Errorf("Interface = %q, want embedded value", cfg.Monitor.Interface)
	}
}

func TestLoadLayered_MissingExplicitFile(t *testing.T) {
	_, err := LoadLayered(CLIOverrides{}, nil, filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadLayered_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.Interface != "eth0" {
		t.Errorf("Interface = %q, want eth0 default", cfg.Monitor.Interface)
	}
	if cfg.Monitor.Duration.Seconds() != 60 {
		t.Errorf("Duration = %v, want 60s default", cfg.Monitor.Duration)
	}
	if cfg.Sampling.Interval.Duration != 100*time.Millisecond {
		t.Errorf("Interval = %v, want 100ms default", cfg.Sampling.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFromBytes_InvalidEnvDuration(t *testing.T) {
	t.Setenv("ROCEMON_DURATION", "soon")
	if _, err := LoadFromBytes(nil); err == nil {
		t.Fatal("expected error for invalid ROCEMON_DURATION")
	}
}

func TestLoadFromBytes_InvalidYAMLDuration(t *testing.T) {
	if _, err := LoadFromBytes([]byte("sampling:\n  interval: fast\n")); err == nil {
		t.Fatal("expected error for invalid interval")
	}
}

func TestValidate_FractionalEnvDuration(t *testing.T) {
	t.Setenv("ROCEMON_DURATION", "1500ms")
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "whole seconds") {
		t.Errorf("Validate() = %v, want whole seconds error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty interface", func(c *Config) { c.Monitor.Interface = "" }, "interface"},
		{"zero duration", func(c *Config) { c.Monitor.Duration = Duration{} }, "duration"},
		{"zero interval", func(c *Config) { c.Sampling.Interval = Duration{} }, "interval"},
		{"unknown source", func(c *Config) { c.Sampling.CounterSource = "sysfs" }, "counter source"},
		{"unknown lister", func(c *Config) { c.Sampling.SocketLister = "lsof" }, "socket lister"},
		{"bad port", func(c *Config) { c.RDMA.CMPort = "70000" }, "cm_port"},
		{"zero ceiling", func(c *Config) { c.Analysis.OutlierCeilingMbps = 0 }, "outlier"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "log level"},
		{"plain http upload", func(c *Config) { c.Monitor.Output = "http://collector.example.com/s" }, "HTTPS"},
		{"plain http localhost", func(c *Config) { c.Monitor.Output = "http://localhost:8080/s" }, ""},
		{"plain http loopback v6", func(c *Config) { c.Monitor.Output = "http://[::1]:8080/s" }, ""},
		{"localhost in path only", func(c *Config) { c.Monitor.Output = "http://example.com/localhost/x" }, "HTTPS"},
		{"localhost as subdomain", func(c *Config) { c.Monitor.Output = "http://localhost.example.com/x" }, "HTTPS"},
		{"fractional duration", func(c *Config) { c.Monitor.Duration = Duration{1500 * time.Millisecond} }, "whole seconds"},
		{"sub-second duration", func(c *Config) { c.Monitor.Duration = Duration{500 * time.Millisecond} }, "whole seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Monitor.Interface = "ens3"
	cfg.Sampling.CallTimeout = Duration{2 * time.Second}

	if err := WriteConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadLayered(CLIOverrides{}, nil, path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Monitor.Interface != "ens3" {
		t.Errorf("Interface = %q, want ens3", loaded.Monitor.Interface)
	}
	if loaded.Sampling.CallTimeout.Duration != 2*time.Second {
		t.Errorf("CallTimeout = %v, want 2s", loaded.Sampling.CallTimeout)
	}
}
