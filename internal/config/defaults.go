package config

import "time"

// Default values applied before the config file and environment.
const (
	DefaultServiceURL     = "http://127.0.0.1:8686"
	DefaultServiceDataset = "default"
	DefaultServiceTimeout = 30 * time.Second

	DefaultViewportMinWidth          = 0.0
	DefaultViewportTimeSpillover     = 3.0
	DefaultViewportLocationSpillover = 2.0

	DefaultCacheRenderCutoff     = 50000
	DefaultCacheThrottleInterval = time.Second
	DefaultCacheUtilEntries      = 256

	DefaultRenderDebounceInterval = 150 * time.Millisecond
	DefaultRenderWidth            = 1200.0
	DefaultRenderHeight           = 800.0
	DefaultRenderPixelsPerBin     = 4.0
	DefaultRenderBandHeight       = 20.0
	DefaultRenderLabelMinBins     = 10

	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false

	DefaultTelemetrySampleRatio = 1.0

	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8686
)
