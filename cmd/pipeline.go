package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/clean"
	"github.com/sells-group/leads-cli/internal/export"
	"github.com/sells-group/leads-cli/internal/leadcsv"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/scorer"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the lead stages end to end with file checkpoints",
	Long: `Chains the stages over a working directory. Each stage reads the file
the previous one wrote, so a window of stages can be rerun with --from and
--to once the earlier files exist.

  1 run      inputs/prospects_raw.csv     -> outputs/leads_master.csv
  2 profile  outputs/leads_master.csv     -> outputs/prospects_profiled.csv
  3 tag      outputs/prospects_profiled.csv -> outputs/prospects_tagged.csv
  4 clean    outputs/prospects_tagged.csv -> outputs/leads_clean.csv (fit only)
  5 score    outputs/leads_clean.csv      -> outputs/leads_scored.csv
  6 export   outputs/leads_scored.csv     -> outputs/sales_pack.xlsx

Examples:
  leads-cli pipeline --dir data
  leads-cli pipeline --dir data --from 3 --to 5
  leads-cli pipeline --site-concurrency 3 --page-concurrency 4 --chunk-size 100`,
	RunE: runPipeline,
}

func init() {
	f := pipelineCmd.Flags()
	f.String("dir", "data", "working directory holding inputs/ and outputs/")
	f.Int("from", 1, "first stage to run")
	f.Int("to", len(pipelineStages), "last stage to run")
	f.Int("site-concurrency", 0, "sites processed concurrently by run and profile (overrides runner.site_concurrency and profile.site_concurrency)")
	f.Int("page-concurrency", 0, "concurrent page fetches per site (overrides fetch.page_concurrency)")
	f.Int("chunk-size", 0, "seeds per output write (overrides runner.chunk_size)")
	rootCmd.AddCommand(pipelineCmd)
}

type stageFunc func(ctx context.Context, in, out string) error

type stage struct {
	name   string
	mode   string
	input  string
	output string
	run    stageFunc
}

var pipelineStages = []stage{
	{name: "run", mode: "run", input: "inputs/prospects_raw.csv", output: "outputs/leads_master.csv", run: runStage},
	{name: "profile", mode: "profile", input: "outputs/leads_master.csv", output: "outputs/prospects_profiled.csv", run: profileStage},
	{name: "tag", mode: "tag", input: "outputs/prospects_profiled.csv", output: "outputs/prospects_tagged.csv", run: tagStage},
	{name: "clean", mode: "clean", input: "outputs/prospects_tagged.csv", output: "outputs/leads_clean.csv", run: cleanStage},
	{name: "score", mode: "score", input: "outputs/leads_clean.csv", output: "outputs/leads_scored.csv", run: scoreStage},
	{name: "export", mode: "export", input: "outputs/leads_scored.csv", output: "outputs/sales_pack.xlsx", run: exportStage},
}

// stageWindow clamps from and to into the stage range and returns the
// stages between them, inclusive. Stage numbers start at 1.
func stageWindow(from, to int) ([]stage, error) {
	from = min(max(from, 1), len(pipelineStages))
	to = min(max(to, 1), len(pipelineStages))
	if from > to {
		return nil, eris.New("pipeline: --from must be <= --to")
	}
	return pipelineStages[from-1 : to], nil
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	from, _ := f.GetInt("from")
	to, _ := f.GetInt("to")
	dir, _ := f.GetString("dir")

	stages, err := stageWindow(from, to)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if f.Changed("site-concurrency") {
		cfg.Profile.SiteConcurrency = cfg.Runner.SiteConcurrency
	}
	for _, s := range stages {
		if err := cfg.Validate(s.mode); err != nil {
			return err
		}
	}
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return err
	}

	for _, sub := range []string{"inputs", "outputs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return eris.Wrapf(err, "pipeline: create %s", sub)
		}
	}
	return runStages(ctx, dir, stages)
}

// runStages runs each stage in order and stops at the first failure. A
// stage whose input file is missing fails before it starts.
func runStages(ctx context.Context, dir string, stages []stage) error {
	for _, s := range stages {
		in := filepath.Join(dir, s.input)
		out := filepath.Join(dir, s.output)
		if _, err := os.Stat(in); err != nil {
			return eris.Errorf("pipeline: %s: missing input %s, the previous stage should have produced it", s.name, in)
		}

		zap.L().Info("pipeline: stage starting", zap.String("stage", s.name), zap.String("input", in), zap.String("output", out))
		start := time.Now()
		if err := s.run(ctx, in, out); err != nil {
			return eris.Wrapf(err, "pipeline: stage %s", s.name)
		}
		zap.L().Info("pipeline: stage done", zap.String("stage", s.name), zap.Duration("elapsed", time.Since(start)))

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func runStage(ctx context.Context, in, out string) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	progress, err := pipeline.NewRunner(buildPipeline(ctx, cfg, st), st).Run(ctx, pipeline.Options{
		InputPath:       in,
		OutputPath:      out,
		ChunkSize:       cfg.Runner.ChunkSize,
		SiteConcurrency: cfg.Runner.SiteConcurrency,
		PageConcurrency: cfg.Fetch.PageConcurrency,
		SleepMin:        cfg.Runner.SleepMin,
		SleepMax:        cfg.Runner.SleepMax,
		ProgressEvery:   cfg.Runner.ProgressEvery,
		Append:          true,
		Resume:          true,
	})
	if err != nil {
		return err
	}
	zap.L().Info("pipeline: run stage summary",
		zap.Int("seeds_done", progress.SeedsDone),
		zap.Int("seeds_skipped", progress.SeedsSkipped),
		zap.Int("rows_written", progress.RowsWritten),
	)
	return nil
}

func profileStage(ctx context.Context, in, out string) error {
	p := buildProfiler(cfg)
	_, err := rewriteLeads(in, out, func(recs []model.LeadRecord) {
		p.ProfileLeads(ctx, recs)
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

func tagStage(_ context.Context, in, out string) error {
	_, err := rewriteLeads(in, out, func(recs []model.LeadRecord) {
		for i := range recs {
			scorer.Tag(&recs[i])
		}
	})
	return err
}

func cleanStage(_ context.Context, in, out string) error {
	opts := clean.OptionsFromConfig(cfg.Clean)
	opts.RequireFit = true
	_, err := cleanLeads(in, out, "", opts)
	return err
}

func scoreStage(_ context.Context, in, out string) error {
	sc := scorer.New(cfg.Scorer)
	_, err := rewriteLeads(in, out, func(recs []model.LeadRecord) {
		for i := range recs {
			sc.Apply(&recs[i])
		}
	})
	return err
}

func exportStage(_ context.Context, in, out string) error {
	recs, extras, err := leadcsv.ReadLeads(in)
	if err != nil {
		return err
	}
	_, err = export.SalesPack(out, recs, leadcsv.LeadColumns(extras))
	return err
}
