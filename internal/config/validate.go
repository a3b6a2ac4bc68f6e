package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validation range constants.
const (
	minParallelDownloads = 1
	maxParallelDownloads = 32
)

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// validLogFormats are the accepted log_format values. "auto" selects text
// on a terminal and JSON otherwise.
var validLogFormats = map[string]bool{
	"auto": true, "text": true, "json": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	if t.ParallelDownloads < minParallelDownloads || t.ParallelDownloads > maxParallelDownloads {
		errs = append(errs, fmt.Errorf("parallel_downloads: must be between %d and %d, got %d",
			minParallelDownloads, maxParallelDownloads, t.ParallelDownloads))
	}

	if t.BandwidthLimit != "" {
		normalized := t.BandwidthLimit
		if strings.HasSuffix(strings.ToLower(normalized), "/s") {
			normalized = normalized[:len(normalized)-len("/s")]
		}

		if _, err := ParseSize(normalized); err != nil {
			errs = append(errs, fmt.Errorf("bandwidth_limit: %w", err))
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}
