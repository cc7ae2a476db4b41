package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/traveler/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Service: config.ServiceConfig{URL: "http://localhost:8686", Dataset: "demo", Timeout: time.Second},
		Viewport: config.ViewportConfig{
			TimeSpillover:     3,
			LocationSpillover: 2,
		},
		Cache: config.CacheConfig{
			RenderCutoff:     500,
			ThrottleInterval: time.Second,
			UtilCacheEntries: 16,
		},
		Render: config.RenderConfig{
			DebounceInterval: 100 * time.Millisecond,
			Width:            800,
			Height:           600,
			PixelsPerBin:     4,
			BandHeight:       20,
			LabelMinBins:     10,
		},
		Telemetry: config.TelemetryConfig{SampleRatio: 1},
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 8686},
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "traveler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestValidate_ValidConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"relative url", func(c *config.Config) { c.Service.URL = "localhost:1" }, config.ErrInvalidServiceURL},
		{"negative timeout", func(c *config.Config) { c.Service.Timeout = -1 }, config.ErrInvalidTimeout},
		{"negative min width", func(c *config.Config) { c.Viewport.MinWidth = -1 }, config.ErrInvalidMinWidth},
		{"small spillover", func(c *config.Config) { c.Viewport.TimeSpillover = 0.5 }, config.ErrInvalidSpillover},
		{"zero cutoff", func(c *config.Config) { c.Cache.RenderCutoff = 0 }, config.ErrInvalidRenderCutoff},
		{"zero throttle", func(c *config.Config) { c.Cache.ThrottleInterval = 0 }, config.ErrInvalidThrottle},
		{"negative util entries", func(c *config.Config) { c.Cache.UtilCacheEntries = -1 }, config.ErrInvalidUtilCacheEntries},
		{"zero debounce", func(c *config.Config) { c.Render.DebounceInterval = 0 }, config.ErrInvalidDebounce},
		{"zero width", func(c *config.Config) { c.Render.Width = 0 }, config.ErrInvalidSize},
		{"zero label bins", func(c *config.Config) { c.Render.LabelMinBins = 0 }, config.ErrInvalidLabelMinBins},
		{"sample ratio", func(c *config.Config) { c.Telemetry.SampleRatio = 1.5 }, config.ErrInvalidSampleRatio},
		{"port", func(c *config.Config) { c.Server.Port = 70000 }, config.ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfigFile(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultServiceURL, cfg.Service.URL)
	assert.Equal(t, config.DefaultCacheThrottleInterval, cfg.Cache.ThrottleInterval)
	assert.Equal(t, int64(config.DefaultCacheRenderCutoff), cfg.Cache.RenderCutoff)
	assert.Equal(t, config.DefaultRenderLabelMinBins, cfg.Render.LabelMinBins)
	assert.Equal(t, "127.0.0.1:8686", cfg.Server.Addr())
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
service:
  dataset: run-42
cache:
  render_cutoff: 1000
  throttle_interval: 250ms
render:
  debounce_interval: 50ms
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "run-42", cfg.Service.Dataset)
	assert.Equal(t, int64(1000), cfg.Cache.RenderCutoff)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.ThrottleInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Render.DebounceInterval)
}

func TestLoadConfig_InvalidFileValue(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfigFile(t, "cache:\n  render_cutoff: -3\n"))
	require.ErrorIs(t, err, config.ErrInvalidRenderCutoff)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TRAVELER_SERVICE_DATASET", "from-env")
	t.Setenv("TRAVELER_SERVER_PORT", "9000")

	cfg, err := config.LoadConfig(writeConfigFile(t, "service:\n  dataset: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Service.Dataset)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "demo", decoded["service"]["dataset"])
	assert.Equal(t, "1s", decoded["cache"]["throttle_interval"])

	reloaded, err := config.LoadConfig(writeConfigFile(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg.Cache, reloaded.Cache)
	assert.Equal(t, cfg.Render, reloaded.Render)
}
