// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for wingu-go. Defaults are applied
// first, then the config file, then CLI flags, so users can run with no
// config file at all.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Network   NetworkConfig   `toml:"network"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NetworkConfig controls HTTP transport behavior.
type NetworkConfig struct {
	// InsecureSkipVerify disables TLS certificate verification. Off by
	// default; only useful against servers with self-signed certificates.
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	UserAgent          string `toml:"user_agent"`
}

// TransfersConfig controls parallelism and bandwidth of file transfers.
type TransfersConfig struct {
	ParallelDownloads int    `toml:"parallel_downloads"`
	BandwidthLimit    string `toml:"bandwidth_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}
