package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/mx"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/rank"
	"github.com/sells-group/leads-cli/internal/resolve"
	"github.com/sells-group/leads-cli/internal/scorer"
	"github.com/sells-group/leads-cli/internal/scrape"
	"github.com/sells-group/leads-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <input_csv> <output_csv>",
	Short: "Extract contacts for every seed and append leads to the output CSV",
	Long: `Reads seeds (company_name, url) from a CSV or XLSX file, resolves each
site, fetches its contact pages, extracts and ranks emails and phones, checks
the domain's MX records and appends scored lead rows to the output CSV in
chunks. Seeds already present in the output are skipped unless --no-resume
or --no-append is given.

Examples:
  leads-cli run seeds.csv leads.csv
  leads-cli run seeds.csv leads.csv --site-concurrency 8 --chunk-size 50
  leads-cli run seeds.xlsx leads.csv --offset 100 --limit 50 --no-append`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.Int("offset", 0, "skip this many seeds from the start of the input")
	f.Int("limit", 0, "process at most this many seeds (0 = all)")
	f.Int("page-concurrency", 0, "concurrent page fetches per site (overrides fetch.page_concurrency)")
	f.Float64("sleep-min", 0, "minimum pause between sites in sequential mode, seconds (overrides runner.sleep_min)")
	f.Float64("sleep-max", 0, "maximum pause between sites in sequential mode, seconds (overrides runner.sleep_max)")
	f.Int("progress-every", 0, "log progress every N sites, 0 disables (overrides runner.progress_every)")
	f.Int("chunk-size", 0, "seeds per output write (overrides runner.chunk_size)")
	f.Int("site-concurrency", 0, "sites processed concurrently (overrides runner.site_concurrency)")
	f.Bool("no-append", false, "overwrite the output file instead of appending (implies --no-resume)")
	f.Bool("no-resume", false, "reprocess seeds already present in the output file")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyRunFlags(cmd, cfg)
	if err := cfg.Validate("run"); err != nil {
		return err
	}
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return err
	}
	opts := runOptions(cmd, cfg, args[0], args[1])

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	p := buildPipeline(ctx, cfg, st)
	runner := pipeline.NewRunner(p, st)

	progress, err := runner.Run(ctx, opts)
	if err != nil {
		return eris.Wrap(err, "run")
	}

	zap.L().Info("run complete",
		zap.String("output", opts.OutputPath),
		zap.Int("seeds_done", progress.SeedsDone),
		zap.Int("seeds_skipped", progress.SeedsSkipped),
		zap.Int("rows_written", progress.RowsWritten),
		zap.Int("site_errors", progress.SiteErrors),
	)
	return nil
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("page-concurrency") {
		c.Fetch.PageConcurrency, _ = f.GetInt("page-concurrency")
	}
	if f.Changed("sleep-min") {
		c.Runner.SleepMin, _ = f.GetFloat64("sleep-min")
	}
	if f.Changed("sleep-max") {
		c.Runner.SleepMax, _ = f.GetFloat64("sleep-max")
	}
	if f.Changed("progress-every") {
		c.Runner.ProgressEvery, _ = f.GetInt("progress-every")
	}
	if f.Changed("chunk-size") {
		c.Runner.ChunkSize, _ = f.GetInt("chunk-size")
	}
	if f.Changed("site-concurrency") {
		c.Runner.SiteConcurrency, _ = f.GetInt("site-concurrency")
	}
}

func runOptions(cmd *cobra.Command, c *config.Config, input, output string) pipeline.Options {
	f := cmd.Flags()
	offset, _ := f.GetInt("offset")
	limit, _ := f.GetInt("limit")
	noAppend, _ := f.GetBool("no-append")
	noResume, _ := f.GetBool("no-resume")

	return pipeline.Options{
		InputPath:       input,
		OutputPath:      output,
		Offset:          offset,
		Limit:           limit,
		ChunkSize:       c.Runner.ChunkSize,
		SiteConcurrency: c.Runner.SiteConcurrency,
		PageConcurrency: c.Fetch.PageConcurrency,
		SleepMin:        c.Runner.SleepMin,
		SleepMax:        c.Runner.SleepMax,
		ProgressEvery:   c.Runner.ProgressEvery,
		Append:          !noAppend,
		Resume:          !noAppend && !noResume,
	}
}

// buildPipeline wires the per-seed stages on one shared HTTP client. MX
// answers are cached in the store when one is configured.
func buildPipeline(ctx context.Context, c *config.Config, st store.Store) *pipeline.Pipeline {
	client := scrape.NewHTTPClient(c.Fetch)
	resolver := resolve.NewResolver(client, c.Fetch.UserAgent)
	fetcher := scrape.NewFetcher(scrape.NewLocalScraper(client, c.Fetch.UserAgent, c.Fetch.MaxBodyBytes), c.Fetch)

	ttl := time.Duration(c.MX.CacheTTLHours) * time.Hour
	var cache mx.Cache = mx.NewMemoryCache()
	if st != nil {
		cache = st
		if n, err := st.DeleteExpiredMX(ctx, ttl); err != nil {
			zap.L().Warn("run: prune mx cache failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Debug("run: pruned mx cache", zap.Int("deleted", n))
		}
	}
	validator := mx.NewValidator(c.MX)
	if len(validator.Servers()) == 0 {
		zap.L().Warn("run: no DNS servers configured or found, MX status will be unknown")
	}
	checker := mx.NewCachedValidator(validator, cache, ttl)

	return pipeline.New(
		resolver,
		fetcher,
		extract.NewExtractor(c.Extract),
		rank.NewRanker(c.Rank),
		checker,
		scorer.New(c.Scorer),
	)
}
