package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointConfigFileAway keeps a stray config.yaml in the working directory from
// leaking into tests that only exercise env handling.
func pointConfigFileAway(t *testing.T) {
	t.Helper()
	t.Setenv("MSC_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	pointConfigFileAway(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "https://stooq.com", cfg.DataSource.BaseURL)
	assert.Equal(t, 5, cfg.Analysis.DefaultMaxLag)
	assert.Equal(t, 30, cfg.Analysis.MaxLagLimit)
	assert.Equal(t, 0.05, cfg.Analysis.Alpha)
	assert.Equal(t, 500, cfg.Analysis.BootstrapReplications)
}

func TestLoadEnvOverrides(t *testing.T) {
	pointConfigFileAway(t)
	t.Setenv("MSC_SERVER_PORT", "9090")
	t.Setenv("MSC_LOGGING_LEVEL", "debug")
	t.Setenv("MSC_ANALYSIS_DEFAULT_MAX_LAG", "3")
	t.Setenv("MSC_DATA_SOURCE_TIMEOUT", "25s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Analysis.DefaultMaxLag)
	assert.Equal(t, 25*time.Second, cfg.DataSource.Timeout)
}

func TestLoadFileOverridesEnvDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
logging:
  level: warn
  format: text
analysis:
  alpha: 0.01
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MSC_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 0.01, cfg.Analysis.Alpha)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5, cfg.Analysis.DefaultMaxLag)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	t.Setenv("MSC_CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"MSC_SERVER_PORT": "0"}},
		{"bad log level", map[string]string{"MSC_LOGGING_LEVEL": "verbose"}},
		{"bad log format", map[string]string{"MSC_LOGGING_FORMAT": "xml"}},
		{"alpha out of range", map[string]string{"MSC_ANALYSIS_ALPHA": "1.5"}},
		{"limit below default", map[string]string{
			"MSC_ANALYSIS_DEFAULT_MAX_LAG": "10",
			"MSC_ANALYSIS_MAX_LAG_LIMIT":   "4",
		}},
		{"bad replications", map[string]string{"MSC_ANALYSIS_BOOTSTRAP_REPLICATIONS": "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pointConfigFileAway(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation")
		})
	}
}
