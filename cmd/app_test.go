package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-g-everett/frametx/config"
)

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.Frame.Width = 64
	cfg.Frame.Height = 16
	cfg.Frame.TextHeight = 8
	cfg.Frame.IntervalMs = 10
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func TestAppRunStopsPacerOnShutdown(t *testing.T) {
	a, err := newApp(smallConfig())
	require.NoError(t, err)
	assert.Nil(t, a.Telemetry, "no broker configured")

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- a.run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	select {
	case <-a.Pacer.Done():
	default:
		t.Fatal("pacer still running after shutdown")
	}
}

func TestAppRunFailsOnBadAddress(t *testing.T) {
	cfg := smallConfig()
	cfg.Server.Addr = "127.0.0.1:-1"
	a, err := newApp(cfg)
	require.NoError(t, err)

	assert.Error(t, a.run(context.Background()))
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 127.0.0.1:5000\nlogging:\n  level: warn\n"), 0644))

	configPath, addr, logLevel = path, "", "debug"
	t.Cleanup(func() { configPath, addr, logLevel = "", "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)

	addr = "127.0.0.1:6000"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6000", cfg.Server.Addr)
}

func TestLoadConfigRejectsBadFlag(t *testing.T) {
	logLevel = "shouty"
	t.Cleanup(func() { logLevel = "" })

	_, err := loadConfig()
	assert.Error(t, err)
}
