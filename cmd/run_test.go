package main

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "none"},
		Fetch: config.FetchConfig{PageConcurrency: 4, TimeoutSecs: 5, MaxBodyBytes: 1 << 20, MaxAttempts: 2},
		MX:    config.MXConfig{Servers: []string{"127.0.0.1:1"}, TimeoutMs: 100, CacheTTLHours: 1},
		Rank:  config.RankConfig{MaxEmailsPerDomain: 3},
		Clean: config.CleanConfig{MaxContactsPerDomain: 2},
		Runner: config.RunnerConfig{
			ChunkSize: 100, SiteConcurrency: 1, SleepMin: 0.5, SleepMax: 1.2, ProgressEvery: 25,
		},
	}
}

func TestApplyRunFlags_OnlyChanged(t *testing.T) {
	c := testConfig()
	cmd := &cobra.Command{}
	f := cmd.Flags()
	f.Int("page-concurrency", 0, "")
	f.Float64("sleep-min", 0, "")
	f.Float64("sleep-max", 0, "")
	f.Int("progress-every", 0, "")
	f.Int("chunk-size", 0, "")
	f.Int("site-concurrency", 0, "")
	require.NoError(t, f.Parse([]string{"--chunk-size", "10", "--site-concurrency", "8", "--progress-every", "0"}))

	applyRunFlags(cmd, c)
	assert.Equal(t, 10, c.Runner.ChunkSize)
	assert.Equal(t, 8, c.Runner.SiteConcurrency)
	assert.Equal(t, 0, c.Runner.ProgressEvery)
	assert.Equal(t, 0.5, c.Runner.SleepMin)
	assert.Equal(t, 4, c.Fetch.PageConcurrency)
}

func TestRunOptions(t *testing.T) {
	c := testConfig()
	cmd := &cobra.Command{}
	f := cmd.Flags()
	f.Int("offset", 0, "")
	f.Int("limit", 0, "")
	f.Bool("no-append", false, "")
	f.Bool("no-resume", false, "")
	require.NoError(t, f.Parse([]string{"--offset", "5", "--limit", "20"}))

	opts := runOptions(cmd, c, "in.csv", "out.csv")
	assert.Equal(t, "in.csv", opts.InputPath)
	assert.Equal(t, "out.csv", opts.OutputPath)
	assert.Equal(t, 5, opts.Offset)
	assert.Equal(t, 20, opts.Limit)
	assert.Equal(t, 100, opts.ChunkSize)
	assert.True(t, opts.Append)
	assert.True(t, opts.Resume)

	cmd = &cobra.Command{}
	f = cmd.Flags()
	f.Int("offset", 0, "")
	f.Int("limit", 0, "")
	f.Bool("no-append", false, "")
	f.Bool("no-resume", false, "")
	require.NoError(t, f.Parse([]string{"--no-append"}))
	opts = runOptions(cmd, c, "in.csv", "out.csv")
	assert.False(t, opts.Append)
	assert.False(t, opts.Resume)
}

func TestBuildPipeline_NoStore(t *testing.T) {
	p := buildPipeline(context.Background(), testConfig(), nil)
	assert.NotNil(t, p)
}

func TestInitStore_None(t *testing.T) {
	cfg = testConfig()
	st, err := initStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestInitStore_Unsupported(t *testing.T) {
	cfg = testConfig()
	cfg.Store.Driver = "mysql"
	_, err := initStore(context.Background())
	require.Error(t, err)
}

func TestRedacted(t *testing.T) {
	c := testConfig()
	c.Store.DatabaseURL = "postgres://leads:s3cret@db:5432/leads"
	out := redacted(c)
	assert.NotContains(t, out.Store.DatabaseURL, "s3cret")
	assert.Contains(t, out.Store.DatabaseURL, "leads:xxxxx@db")
	assert.Equal(t, "postgres://leads:s3cret@db:5432/leads", c.Store.DatabaseURL)
}
