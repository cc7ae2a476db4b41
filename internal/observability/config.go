// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for every traveler mode (CLI, MCP, serve).
package observability

import (
	"io"
	"log/slog"

	"github.com/Sumatoshi-tech/traveler/internal/config"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is the one-shot command mode.
	ModeCLI AppMode = "cli"
	// ModeMCP is the MCP stdio server mode.
	ModeMCP AppMode = "mcp"
	// ModeServe is the HTTP query service mode.
	ModeServe AppMode = "serve"
)

// serviceName is the OTel resource service name and the log "service" key.
const serviceName = "traveler"

// Config selects how one traveler process reports about itself. The
// telemetry and logging sections come straight from the loaded settings.
type Config struct {
	// Mode identifies how the binary was launched.
	Mode AppMode

	// Version is the version of the running binary.
	Version string

	// Telemetry is the OTLP export section. An empty endpoint keeps every
	// provider no-op.
	Telemetry config.TelemetryConfig

	// Logging is the log output section.
	Logging config.LoggingConfig

	// Verbose forces debug logging regardless of Logging.Level.
	Verbose bool

	// LogWriter receives log output. Nil means os.Stderr. The MCP mode must
	// keep stdout clean for the protocol.
	LogWriter io.Writer
}

// DefaultConfig returns a Config for zero-config startup: CLI mode, info
// logs to stderr, nothing exported.
func DefaultConfig() Config {
	return Config{Mode: ModeCLI, Logging: config.LoggingConfig{Level: "info"}}
}

// FromSettings derives the Config of a process launched in mode from the
// loaded traveler settings.
func FromSettings(settings *config.Config, mode AppMode, logs io.Writer) Config {
	return Config{
		Mode:      mode,
		Telemetry: settings.Telemetry,
		Logging:   settings.Logging,
		LogWriter: logs,
	}
}

func (c Config) level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}

	return ParseLevel(c.Logging.Level)
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
// Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level

	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}

	return lvl
}
