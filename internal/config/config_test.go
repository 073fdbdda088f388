package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/tcpsniff/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tcpsniff.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SourcePcap, cfg.Capture.Source)
	assert.Equal(t, "enp0s3", cfg.Capture.Interface)
	assert.Equal(t, 8192, cfg.Capture.SnapLen)
	assert.True(t, cfg.Capture.Promiscuous)
	assert.Equal(t, time.Second, cfg.Capture.Timeout)
	assert.Equal(t, "tcp", cfg.Capture.Filter)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)

	require.Len(t, cfg.Reporters, 1)
	assert.Equal(t, "console", cfg.Reporters[0].Name)
	assert.Equal(t, "text", cfg.Reporters[0].Config["format"])
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
tcpsniff:
  capture:
    source: afpacket
    interface: eth1
    snap_len: 1514
    promiscuous: false
    timeout: 250ms
    filter: "tcp port 80"
  reporters:
    - name: console
      config:
        format: json
    - name: kafka
      config:
        brokers: ["localhost:9092"]
        topic: packets
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
  log:
    level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceAFPacket, cfg.Capture.Source)
	assert.Equal(t, "eth1", cfg.Capture.Interface)
	assert.Equal(t, 1514, cfg.Capture.SnapLen)
	assert.False(t, cfg.Capture.Promiscuous)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.Timeout)
	assert.Equal(t, "tcp port 80", cfg.Capture.Filter)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	require.Len(t, cfg.Reporters, 2)
	assert.Equal(t, "kafka", cfg.Reporters[1].Name)
	assert.Equal(t, "packets", cfg.Reporters[1].Config["topic"])
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TCPSNIFF_CAPTURE_INTERFACE", "lo")
	t.Setenv("TCPSNIFF_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "lo", cfg.Capture.Interface)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown source", func(c *Config) { c.Capture.Source = "xdp" }},
		{"empty interface", func(c *Config) { c.Capture.Interface = "" }},
		{"file source without file", func(c *Config) { c.Capture.Source = SourceFile }},
		{"zero snaplen", func(c *Config) { c.Capture.SnapLen = 0 }},
		{"snaplen below headers", func(c *Config) { c.Capture.SnapLen = 40 }},
		{"negative timeout", func(c *Config) { c.Capture.Timeout = -time.Second }},
		{"negative count", func(c *Config) { c.Capture.Count = -1 }},
		{"no reporters", func(c *Config) { c.Reporters = nil }},
		{"unnamed reporter", func(c *Config) { c.Reporters = []ReporterConfig{{}} }},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid))
		})
	}
}

func TestValidateFileSource(t *testing.T) {
	cfg := Default()
	cfg.Capture.Source = SourceFile
	cfg.Capture.Interface = ""
	cfg.Capture.File = "trace.pcap"
	assert.NoError(t, cfg.Validate())
}

func TestPluginConfig(t *testing.T) {
	cfg := Default()
	m := cfg.Capture.PluginConfig()

	assert.Equal(t, "enp0s3", m["interface"])
	assert.Equal(t, 8192, m["snap_len"])
	assert.Equal(t, time.Second, m["timeout"])
	assert.NotContains(t, m, "file")
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	out, err := cfg.YAML()
	require.NoError(t, err)

	var decoded map[string]Config
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	got := decoded["tcpsniff"]
	assert.Equal(t, cfg.Capture, got.Capture)
	assert.Equal(t, cfg.Log, got.Log)
	assert.Contains(t, string(out), "timeout: 1s")
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "tcpsniff.yml"))
	require.NoError(t, err)

	assert.Equal(t, SourcePcap, cfg.Capture.Source)
	assert.Equal(t, "enp0s3", cfg.Capture.Interface)
	assert.Equal(t, time.Second, cfg.Capture.Timeout)
	require.Len(t, cfg.Reporters, 1)
	assert.Equal(t, "console", cfg.Reporters[0].Name)
}
