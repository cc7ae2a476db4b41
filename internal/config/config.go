package config

import (
	"errors"
	"net/url"
	"time"
)

// Config is the top-level configuration struct for traveler.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Render    RenderConfig    `mapstructure:"render"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Server    ServerConfig    `mapstructure:"server"`
}

// ServiceConfig locates the trace query service.
type ServiceConfig struct {
	URL     string        `mapstructure:"url"`
	Dataset string        `mapstructure:"dataset"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ViewportConfig holds viewport clamping and spillover factors.
type ViewportConfig struct {
	MinWidth          float64 `mapstructure:"min_width"`
	TimeSpillover     float64 `mapstructure:"time_spillover"`
	LocationSpillover float64 `mapstructure:"location_spillover"`
}

// CacheConfig holds streaming interval cache settings.
type CacheConfig struct {
	RenderCutoff     int64         `mapstructure:"render_cutoff"`
	ThrottleInterval time.Duration `mapstructure:"throttle_interval"`
	UtilCacheEntries int           `mapstructure:"util_cache_entries"`
}

// RenderConfig holds redraw scheduling and layout settings.
type RenderConfig struct {
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	Width            float64       `mapstructure:"width"`
	Height           float64       `mapstructure:"height"`
	PixelsPerBin     float64       `mapstructure:"pixels_per_bin"`
	BandHeight       float64       `mapstructure:"band_height"`
	LabelMinBins     int           `mapstructure:"label_min_bins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// ServerConfig holds the listen address of `traveler serve`.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// maxPort is the largest TCP port.
const maxPort = 65535

// Sentinel errors for configuration validation.
var (
	// ErrInvalidServiceURL indicates the service URL is not absolute.
	ErrInvalidServiceURL = errors.New("service.url must be an absolute http(s) URL")
	// ErrInvalidTimeout indicates a negative request timeout.
	ErrInvalidTimeout = errors.New("service.timeout must be non-negative")
	// ErrInvalidMinWidth indicates a negative minimum viewport width.
	ErrInvalidMinWidth = errors.New("viewport.min_width must be non-negative")
	// ErrInvalidSpillover indicates a spillover factor below 1.
	ErrInvalidSpillover = errors.New("viewport spillover factors must be at least 1")
	// ErrInvalidRenderCutoff indicates the render cutoff is not positive.
	ErrInvalidRenderCutoff = errors.New("cache.render_cutoff must be positive")
	// ErrInvalidThrottle indicates the throttle interval is not positive.
	ErrInvalidThrottle = errors.New("cache.throttle_interval must be positive")
	// ErrInvalidUtilCacheEntries indicates a negative utilization cache size.
	ErrInvalidUtilCacheEntries = errors.New("cache.util_cache_entries must be non-negative")
	// ErrInvalidDebounce indicates the debounce interval is not positive.
	ErrInvalidDebounce = errors.New("render.debounce_interval must be positive")
	// ErrInvalidSize indicates a non-positive chart dimension.
	ErrInvalidSize = errors.New("render width, height, pixels_per_bin and band_height must be positive")
	// ErrInvalidLabelMinBins indicates the label threshold is not positive.
	ErrInvalidLabelMinBins = errors.New("render.label_min_bins must be positive")
	// ErrInvalidSampleRatio indicates the sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
	// ErrInvalidPort indicates the server port is out of range.
	ErrInvalidPort = errors.New("server.port must be between 0 and 65535")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	serviceErr := c.validateService()
	if serviceErr != nil {
		return serviceErr
	}

	viewErr := c.validateView()
	if viewErr != nil {
		return viewErr
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	if c.Server.Port < 0 || c.Server.Port > maxPort {
		return ErrInvalidPort
	}

	return nil
}

func (c *Config) validateService() error {
	if c.Service.URL != "" {
		u, err := url.Parse(c.Service.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidServiceURL
		}
	}

	if c.Service.Timeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}

func (c *Config) validateView() error {
	if c.Viewport.MinWidth < 0 {
		return ErrInvalidMinWidth
	}

	if c.Viewport.TimeSpillover < 1 || c.Viewport.LocationSpillover < 1 {
		return ErrInvalidSpillover
	}

	if c.Cache.RenderCutoff <= 0 {
		return ErrInvalidRenderCutoff
	}

	if c.Cache.ThrottleInterval <= 0 {
		return ErrInvalidThrottle
	}

	if c.Cache.UtilCacheEntries < 0 {
		return ErrInvalidUtilCacheEntries
	}

	if c.Render.DebounceInterval <= 0 {
		return ErrInvalidDebounce
	}

	if c.Render.Width <= 0 || c.Render.Height <= 0 || c.Render.PixelsPerBin <= 0 || c.Render.BandHeight <= 0 {
		return ErrInvalidSize
	}

	if c.Render.LabelMinBins <= 0 {
		return ErrInvalidLabelMinBins
	}

	return nil
}
