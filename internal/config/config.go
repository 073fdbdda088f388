// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
)

// Capture source names.
const (
	SourcePcap     = "pcap"
	SourceAFPacket = "afpacket"
	SourceFile     = "file"
)

// Config is the top-level configuration.
// Maps to the `tcpsniff:` root key in YAML.
type Config struct {
	Capture   CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Reporters []ReporterConfig `mapstructure:"reporters" yaml:"reporters"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log       log.Config       `mapstructure:"log" yaml:"log"`
}

// CaptureConfig holds the operator-facing capture parameters.
type CaptureConfig struct {
	Source       string        `mapstructure:"source" yaml:"source"` // pcap | afpacket | file
	Interface    string        `mapstructure:"interface" yaml:"interface"`
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`
	Promiscuous  bool          `mapstructure:"promiscuous" yaml:"promiscuous"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Filter       string        `mapstructure:"filter" yaml:"filter"`
	File         string        `mapstructure:"file" yaml:"file,omitempty"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"` // afpacket ring size
	Count        int           `mapstructure:"count" yaml:"count"`                   // stop after N reports, 0 = unlimited
}

// ReporterConfig contains reporter plugin configuration.
type ReporterConfig struct {
	Name   string         `mapstructure:"name" yaml:"name"`
	Config map[string]any `mapstructure:"config" yaml:"config,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `tcpsniff: ...`.
type configRoot struct {
	TCPSniff Config `mapstructure:"tcpsniff"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides (e.g. TCPSNIFF_CAPTURE_INTERFACE=eth1).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `tcpsniff.` key prefix maps to `TCPSNIFF_` via the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.TCPSniff

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults invalid: %v", err))
	}
	return cfg
}

// setDefaults mirrors the classic sniffer invocation:
// enp0s3, BUFSIZ snapshot, promiscuous, 1000 ms timeout, "tcp" filter.
func setDefaults(v *viper.Viper) {
	v.SetDefault("tcpsniff.capture.source", SourcePcap)
	v.SetDefault("tcpsniff.capture.interface", "enp0s3")
	v.SetDefault("tcpsniff.capture.snap_len", 8192)
	v.SetDefault("tcpsniff.capture.promiscuous", true)
	v.SetDefault("tcpsniff.capture.timeout", "1s")
	v.SetDefault("tcpsniff.capture.filter", "tcp")
	v.SetDefault("tcpsniff.capture.buffer_size_mb", 8)
	v.SetDefault("tcpsniff.capture.count", 0)

	v.SetDefault("tcpsniff.reporters", []map[string]any{
		{"name": "console", "config": map[string]any{"format": "text"}},
	})

	v.SetDefault("tcpsniff.metrics.enabled", false)
	v.SetDefault("tcpsniff.metrics.listen", ":9091")
	v.SetDefault("tcpsniff.metrics.path", "/metrics")

	v.SetDefault("tcpsniff.log.level", log.DefaultLevel)
	v.SetDefault("tcpsniff.log.pattern", log.DefaultPattern)
	v.SetDefault("tcpsniff.log.time", log.DefaultTime)
	v.SetDefault("tcpsniff.log.file.enabled", false)
	v.SetDefault("tcpsniff.log.file.filename", "/var/log/tcpsniff/tcpsniff.log")
	v.SetDefault("tcpsniff.log.file.max_size", 100)
	v.SetDefault("tcpsniff.log.file.max_backups", 5)
	v.SetDefault("tcpsniff.log.file.max_age", 30)
	v.SetDefault("tcpsniff.log.file.compress", true)
}

// Validate checks the configuration. Errors wrap core.ErrConfigInvalid.
func (c *Config) Validate() error {
	switch c.Capture.Source {
	case SourcePcap, SourceAFPacket:
		if c.Capture.Interface == "" {
			return fmt.Errorf("%w: capture.interface is required for source %q", core.ErrConfigInvalid, c.Capture.Source)
		}
	case SourceFile:
		if c.Capture.File == "" {
			return fmt.Errorf("%w: capture.file is required for source %q", core.ErrConfigInvalid, SourceFile)
		}
	default:
		return fmt.Errorf("%w: unknown capture.source %q (must be pcap/afpacket/file)", core.ErrConfigInvalid, c.Capture.Source)
	}

	if c.Capture.SnapLen <= 0 {
		return fmt.Errorf("%w: capture.snap_len must be positive, got %d", core.ErrConfigInvalid, c.Capture.SnapLen)
	}
	if c.Capture.SnapLen < core.EthernetHdrLen+core.IPv4HdrMinLen+core.TCPHdrMinLen {
		return fmt.Errorf("%w: capture.snap_len %d cannot hold Ethernet+IPv4+TCP headers", core.ErrConfigInvalid, c.Capture.SnapLen)
	}
	if c.Capture.Timeout < 0 {
		return fmt.Errorf("%w: capture.timeout must not be negative", core.ErrConfigInvalid)
	}
	if c.Capture.Count < 0 {
		return fmt.Errorf("%w: capture.count must not be negative", core.ErrConfigInvalid)
	}

	if len(c.Reporters) == 0 {
		return fmt.Errorf("%w: at least one reporter is required", core.ErrConfigInvalid)
	}
	for i, r := range c.Reporters {
		if r.Name == "" {
			return fmt.Errorf("%w: reporters[%d].name is required", core.ErrConfigInvalid, i)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: invalid log level %q", core.ErrConfigInvalid, c.Log.Level)
	}
	return nil
}

// PluginConfig renders the capture section as a capturer plugin config map.
func (c CaptureConfig) PluginConfig() map[string]any {
	m := map[string]any{
		"interface":      c.Interface,
		"snap_len":       c.SnapLen,
		"promiscuous":    c.Promiscuous,
		"timeout":        c.Timeout,
		"filter":         c.Filter,
		"buffer_size_mb": c.BufferSizeMB,
	}
	if c.File != "" {
		m["file"] = c.File
	}
	return m
}

// YAML renders the effective configuration under the `tcpsniff:` root key.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(map[string]*Config{"tcpsniff": c})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
