package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DefaultCandidatePaths, cfg.Fetch.CandidatePaths)
	assert.Equal(t, 4, cfg.Fetch.PageConcurrency)
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, int64(2<<20), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, 2, cfg.Fetch.MaxAttempts)
	assert.Equal(t, "US", cfg.Extract.Region)
	assert.Equal(t, 2500, cfg.MX.TimeoutMs)
	assert.Equal(t, 72, cfg.MX.CacheTTLHours)
	assert.Equal(t, 3, cfg.Rank.MaxEmailsPerDomain)
	assert.Equal(t, 90, cfg.Rank.NamedConfidence)
	assert.Equal(t, 70, cfg.Rank.RoleConfidence)
	assert.Equal(t, 4, cfg.Scorer.ProductFitWeight)
	assert.Equal(t, 3, cfg.Scorer.NamedEmailWeight)
	assert.Equal(t, 10, cfg.Scorer.MaxScore)
	assert.Equal(t, 8, cfg.Scorer.TierAMin)
	assert.Equal(t, 5, cfg.Scorer.TierBMin)
	assert.Equal(t, 100, cfg.Runner.ChunkSize)
	assert.Equal(t, 1, cfg.Runner.SiteConcurrency)
	assert.InDelta(t, 0.5, cfg.Runner.SleepMin, 0.001)
	assert.InDelta(t, 1.2, cfg.Runner.SleepMax, 0.001)
	assert.Equal(t, 25, cfg.Runner.ProgressEvery)
	assert.Equal(t, 4, cfg.Profile.SiteConcurrency)
	assert.Equal(t, 2, cfg.Clean.MaxContactsPerDomain)
	assert.Equal(t, DefaultBlockedDomains, cfg.Clean.BlockedDomains)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
fetch:
  page_concurrency: 8
  candidate_paths: ["", "contact"]
runner:
  chunk_size: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Fetch.PageConcurrency)
	assert.Equal(t, []string{"", "contact"}, cfg.Fetch.CandidatePaths)
	assert.Equal(t, 10, cfg.Runner.ChunkSize)
	// Defaults still apply for unset values
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LEADS_STORE_DRIVER", "none")
	t.Setenv("LEADS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADS_RUNNER_SITE_CONCURRENCY", "6")
	t.Setenv("LEADS_MX_TIMEOUT_MS", "1000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Runner.SiteConcurrency)
	assert.Equal(t, 1000, cfg.MX.TimeoutMs)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leads.db"
	cfg.Fetch.PageConcurrency = 4
	cfg.Fetch.TimeoutSecs = 15
	cfg.Fetch.MaxBodyBytes = 2 << 20
	cfg.Fetch.MaxAttempts = 2
	cfg.MX.TimeoutMs = 2500
	cfg.Rank.MaxEmailsPerDomain = 3
	cfg.Runner.ChunkSize = 100
	cfg.Runner.SiteConcurrency = 1
	cfg.Runner.SleepMin = 0.5
	cfg.Runner.SleepMax = 1.2
	cfg.Runner.ProgressEvery = 25
	cfg.Profile.SiteConcurrency = 4
	cfg.Clean.MaxContactsPerDomain = 2
	return cfg
}

func TestValidateRun_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.PageConcurrency = 0
	cfg.Runner.ChunkSize = 0
	cfg.Runner.SleepMin = 2
	cfg.Rank.MaxEmailsPerDomain = 0

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.page_concurrency must be >= 1")
	assert.Contains(t, err.Error(), "runner.chunk_size must be >= 1")
	assert.Contains(t, err.Error(), "runner.sleep_min")
	assert.Contains(t, err.Error(), "rank.max_emails_per_domain")
}

func TestValidateProfile(t *testing.T) {
	cfg := validDefaults()
	cfg.Profile.SiteConcurrency = 0

	err := cfg.Validate("profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile.site_concurrency")
}

func TestValidateClean(t *testing.T) {
	cfg := validDefaults()
	require.NoError(t, cfg.Validate("clean"))

	cfg.Clean.MaxContactsPerDomain = 0
	err := cfg.Validate("clean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clean.max_contacts_per_domain")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err = cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateRuns_NeedsStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "none"
	err := cfg.Validate("runs")
	require.Error(t, err)

	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("runs"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
