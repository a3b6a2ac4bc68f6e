package config

// Default values for configuration options. Chosen to be safe starting
// points that work for most users without any config file.
const (
	defaultParallelDownloads = 4
	defaultBandwidthLimit    = "0"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultUserAgent         = "wingu-go/0.1"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			InsecureSkipVerify: false,
			UserAgent:          defaultUserAgent,
		},
		Transfers: TransfersConfig{
			ParallelDownloads: defaultParallelDownloads,
			BandwidthLimit:    defaultBandwidthLimit,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
