package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".traveler"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for traveler settings.
const envPrefix = "TRAVELER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("service.url", DefaultServiceURL)
	viperCfg.SetDefault("service.dataset", DefaultServiceDataset)
	viperCfg.SetDefault("service.timeout", DefaultServiceTimeout)

	viperCfg.SetDefault("viewport.min_width", DefaultViewportMinWidth)
	viperCfg.SetDefault("viewport.time_spillover", DefaultViewportTimeSpillover)
	viperCfg.SetDefault("viewport.location_spillover", DefaultViewportLocationSpillover)

	viperCfg.SetDefault("cache.render_cutoff", DefaultCacheRenderCutoff)
	viperCfg.SetDefault("cache.throttle_interval", DefaultCacheThrottleInterval)
	viperCfg.SetDefault("cache.util_cache_entries", DefaultCacheUtilEntries)

	viperCfg.SetDefault("render.debounce_interval", DefaultRenderDebounceInterval)
	viperCfg.SetDefault("render.width", DefaultRenderWidth)
	viperCfg.SetDefault("render.height", DefaultRenderHeight)
	viperCfg.SetDefault("render.pixels_per_bin", DefaultRenderPixelsPerBin)
	viperCfg.SetDefault("render.band_height", DefaultRenderBandHeight)
	viperCfg.SetDefault("render.label_min_bins", DefaultRenderLabelMinBins)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)

	viperCfg.SetDefault("server.host", DefaultServerHost)
	viperCfg.SetDefault("server.port", DefaultServerPort)
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
