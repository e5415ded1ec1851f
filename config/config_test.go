package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, int64(33), c.Frame.IntervalMs)
	assert.Equal(t, 33*time.Millisecond, c.Frame.Interval())
	assert.Equal(t, 1920*1080*3, c.Frame.BufferSize())
	assert.False(t, c.Mqtt.Enabled())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
frame:
  width: 1280
  height: 720
  interval_ms: 40
server:
  addr: 127.0.0.1:4000
  frame_wait_timeout: 2s
mqtt:
  url: tcp://localhost:1883
  topics:
    telemetry: lab/deliveries
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1280, c.Frame.Width)
	assert.Equal(t, 720, c.Frame.Height)
	assert.Equal(t, int64(40), c.Frame.IntervalMs)
	assert.Equal(t, float64(64), c.Frame.TextHeight, "unset keys keep their defaults")
	assert.Equal(t, "127.0.0.1:4000", c.Server.Addr)
	assert.Equal(t, 2*time.Second, c.Server.FrameWaitTimeout)
	assert.True(t, c.Mqtt.Enabled())
	assert.Equal(t, "lab/deliveries", c.Mqtt.Topics.Telemetry)
	assert.Equal(t, "frametx", c.Mqtt.ClientID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
frame:
  width: 0
  interval_ms: -1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame size")
	assert.Contains(t, err.Error(), "frame interval")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"bad background", func(c *Config) { c.Frame.Background = "white" }, true},
		{"bad foreground", func(c *Config) { c.Frame.Foreground = "#12" }, true},
		{"zero text height", func(c *Config) { c.Frame.TextHeight = 0 }, true},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"negative wait", func(c *Config) { c.Server.FrameWaitTimeout = -time.Second }, true},
		{"metrics without path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "" }, true},
		{"disabled metrics without path", func(c *Config) { c.Metrics.Path = "" }, false},
		{"mqtt without topic", func(c *Config) { c.Mqtt.URL = "tcp://x:1883"; c.Mqtt.Topics.Telemetry = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "frametx.log")
	require.NoError(t, SetupLogger(LoggingConfig{Level: "debug", Format: "json", Output: "file", File: file}))
	t.Cleanup(func() { _ = SetupLogger(DefaultLoggingConfig()) })

	Logger("test").Info("hello")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"msg":"hello"`)

	assert.Error(t, SetupLogger(LoggingConfig{Level: "nope", Format: "text", Output: "stdout"}))
}
