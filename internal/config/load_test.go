package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadOrDefault_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOrDefault_AbsentFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultParallelDownloads, cfg.Transfers.ParallelDownloads)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfigFile(t, `
[network]
insecure_skip_verify = true
user_agent = "custom/1.0"

[transfers]
parallel_downloads = 8
bandwidth_limit = "500KB/s"

[logging]
log_level = "debug"
log_format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Network.InsecureSkipVerify)
	assert.Equal(t, "custom/1.0", cfg.Network.UserAgent)
	assert.Equal(t, 8, cfg.Transfers.ParallelDownloads)
	assert.Equal(t, "500KB/s", cfg.Transfers.BandwidthLimit)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[logging]
log_level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.LogLevel)
	assert.Equal(t, defaultLogFormat, cfg.Logging.LogFormat)
	assert.Equal(t, defaultParallelDownloads, cfg.Transfers.ParallelDownloads)
}

func TestLoad_UnknownKeySuggestsClosest(t *testing.T) {
	path := writeConfigFile(t, `
[logging]
log_levl = "debug"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `did you mean "logging.log_level"`)
}

func TestLoad_UnknownKeyNoSuggestion(t *testing.T) {
	path := writeConfigFile(t, `
completely_unrelated_setting = 1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfigFile(t, `[network`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationReportsAllErrors(t *testing.T) {
	path := writeConfigFile(t, `
[transfers]
parallel_downloads = 99
bandwidth_limit = "fast"

[logging]
log_level = "loud"
log_format = "xml"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel_downloads")
	assert.Contains(t, err.Error(), "bandwidth_limit")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_BandwidthLimitAcceptsRateSuffix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transfers.BandwidthLimit = "1MiB/s"
	require.NoError(t, Validate(cfg))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 1, levenshtein("log_levl", "log_levl1"))
	assert.Equal(t, 1, levenshtein("kitten", "sitten"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestClosestMatch_UnqualifiedKeyMatchesLeaf(t *testing.T) {
	assert.Equal(t, "logging.log_level", closestMatch("log_level", knownKeysList))
	assert.Equal(t, "", closestMatch("zzzzzzzzzzz", knownKeysList))
}
