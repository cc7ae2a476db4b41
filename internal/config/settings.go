package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlIndent is the indentation of printed configuration.
const yamlIndent = 2

// Settings returns the configuration as nested maps keyed like the config
// file, with durations rendered as strings.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"service": map[string]any{
			"url":     c.Service.URL,
			"dataset": c.Service.Dataset,
			"timeout": c.Service.Timeout.String(),
		},
		"viewport": map[string]any{
			"min_width":          c.Viewport.MinWidth,
			"time_spillover":     c.Viewport.TimeSpillover,
			"location_spillover": c.Viewport.LocationSpillover,
		},
		"cache": map[string]any{
			"render_cutoff":      c.Cache.RenderCutoff,
			"throttle_interval":  c.Cache.ThrottleInterval.String(),
			"util_cache_entries": c.Cache.UtilCacheEntries,
		},
		"render": map[string]any{
			"debounce_interval": c.Render.DebounceInterval.String(),
			"width":             c.Render.Width,
			"height":            c.Render.Height,
			"pixels_per_bin":    c.Render.PixelsPerBin,
			"band_height":       c.Render.BandHeight,
			"label_min_bins":    c.Render.LabelMinBins,
		},
		"logging": map[string]any{
			"level": c.Logging.Level,
			"json":  c.Logging.JSON,
		},
		"telemetry": map[string]any{
			"otlp_endpoint": c.Telemetry.OTLPEndpoint,
			"otlp_headers":  c.Telemetry.OTLPHeaders,
			"otlp_insecure": c.Telemetry.OTLPInsecure,
			"sample_ratio":  c.Telemetry.SampleRatio,
		},
		"server": map[string]any{
			"host": c.Server.Host,
			"port": c.Server.Port,
		},
	}
}

// WriteYAML prints the configuration in config file format.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(c.Settings())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("flush config: %w", err)
	}

	return nil
}
