package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leads-cli/internal/leadcsv"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

// SeedProcessor turns one seed into lead records.
type SeedProcessor interface {
	ProcessSeed(ctx context.Context, seed model.Seed) ([]model.LeadRecord, model.SiteResult, error)
}

// Options configures one batch run.
type Options struct {
	InputPath       string
	OutputPath      string
	Offset          int
	Limit           int // 0 means no limit
	ChunkSize       int
	SiteConcurrency int
	PageConcurrency int
	SleepMin        float64
	SleepMax        float64
	ProgressEvery   int
	Append          bool
	Resume          bool
}

// Params returns the options as persisted in the run ledger.
func (o Options) Params() model.RunParams {
	return model.RunParams{
		InputPath:       o.InputPath,
		OutputPath:      o.OutputPath,
		Offset:          o.Offset,
		Limit:           o.Limit,
		ChunkSize:       o.ChunkSize,
		SiteConcurrency: o.SiteConcurrency,
		PageConcurrency: o.PageConcurrency,
		SleepMin:        o.SleepMin,
		SleepMax:        o.SleepMax,
		Append:          o.Append,
		Resume:          o.Resume,
	}
}

// Runner drives a seed file through a SeedProcessor in chunks, appending
// each chunk to the output file before starting the next.
type Runner struct {
	proc  SeedProcessor
	store store.Store
	sleep func(time.Duration)
}

// NewRunner creates a Runner. st may be nil, in which case no run ledger is
// kept.
func NewRunner(proc SeedProcessor, st store.Store) *Runner {
	return &Runner{proc: proc, store: st, sleep: time.Sleep}
}

// Run processes every pending seed of opts.InputPath. A missing or
// unreadable input, or a failed output write, is returned before or instead
// of further work; per-seed failures become error:site rows. Cancelling ctx
// stops the run after the chunk in flight has been written.
func (r *Runner) Run(ctx context.Context, opts Options) (model.RunProgress, error) {
	var progress model.RunProgress
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 100
	}
	if opts.SiteConcurrency <= 0 {
		opts.SiteConcurrency = 1
	}
	if !opts.Append {
		opts.Resume = false
	}

	seeds, err := leadcsv.ReadSeeds(opts.InputPath)
	if err != nil {
		return progress, eris.Wrap(err, "pipeline: read seeds")
	}
	seeds = window(seeds, opts.Offset, opts.Limit)
	progress.SeedsTotal = len(seeds)

	w := leadcsv.NewWriter(opts.OutputPath, nil)
	if !opts.Append {
		if err := w.Truncate(); err != nil {
			return progress, eris.Wrap(err, "pipeline: truncate output")
		}
	}
	if opts.Resume {
		done, err := leadcsv.ReadKeys(opts.OutputPath)
		if err != nil {
			return progress, eris.Wrap(err, "pipeline: read resume keys")
		}
		pending := seeds[:0:0]
		for _, s := range seeds {
			if _, ok := done[s.Key()]; ok {
				continue
			}
			pending = append(pending, s)
		}
		progress.SeedsSkipped = len(seeds) - len(pending)
		seeds = pending
	}
	if err := w.EnsureHeader(); err != nil {
		return progress, eris.Wrap(err, "pipeline: write header")
	}

	log := zap.L().With(zap.String("input", opts.InputPath), zap.String("output", opts.OutputPath))
	runID := r.startRun(ctx, opts)
	if runID != "" {
		log = log.With(zap.String("run_id", runID))
	}
	log.Info("pipeline: run starting",
		zap.Int("seeds", progress.SeedsTotal),
		zap.Int("skipped", progress.SeedsSkipped),
		zap.Int("pending", len(seeds)),
	)

	// In-flight chunks finish on a context that ignores cancellation so a
	// partially processed chunk is never written.
	work := context.WithoutCancel(ctx)

	for start := 0; start < len(seeds); start += opts.ChunkSize {
		if ctx.Err() != nil {
			r.finishRun(ctx, runID, model.RunStatusFailed, progress, "cancelled")
			log.Warn("pipeline: run cancelled", zap.Int("seeds_done", progress.SeedsDone))
			return progress, eris.Wrap(ctx.Err(), "pipeline: run cancelled")
		}

		chunk := seeds[start:min(start+opts.ChunkSize, len(seeds))]
		rows, results := r.processChunk(work, chunk, opts, progress.SeedsDone, len(seeds))
		rows = Dedup(rows)

		n, err := w.Append(rows)
		if err != nil {
			r.finishRun(ctx, runID, model.RunStatusFailed, progress, err.Error())
			return progress, eris.Wrap(err, "pipeline: append chunk")
		}

		progress.Chunks++
		progress.SeedsDone += len(chunk)
		progress.RowsWritten += n
		for _, res := range results {
			if res.Status == model.SiteStatusError {
				progress.SiteErrors++
			}
		}
		r.recordChunk(work, runID, results, progress)

		log.Info("pipeline: chunk written",
			zap.Int("chunk", progress.Chunks),
			zap.Int("rows", n),
			zap.Int("seeds_done", progress.SeedsDone),
			zap.Int("seeds_pending", len(seeds)),
		)
	}

	r.finishRun(work, runID, model.RunStatusComplete, progress, "")
	log.Info("pipeline: run complete",
		zap.Int("seeds_done", progress.SeedsDone),
		zap.Int("rows_written", progress.RowsWritten),
		zap.Int("site_errors", progress.SiteErrors),
	)
	return progress, nil
}

// processChunk runs every seed of chunk and returns the records in
// completion order along with one SiteResult per seed.
func (r *Runner) processChunk(ctx context.Context, chunk []model.Seed, opts Options, doneBefore, total int) ([]model.LeadRecord, []model.SiteResult) {
	var (
		mu      sync.Mutex
		rows    []model.LeadRecord
		results = make([]model.SiteResult, 0, len(chunk))
		counter atomic.Int64
	)
	collect := func(recs []model.LeadRecord, res model.SiteResult) {
		mu.Lock()
		rows = append(rows, recs...)
		results = append(results, res)
		mu.Unlock()

		n := doneBefore + int(counter.Add(1))
		if opts.ProgressEvery > 0 && n%opts.ProgressEvery == 0 {
			zap.L().Info("pipeline: progress", zap.Int("processed", n), zap.Int("total", total))
		}
	}

	if opts.SiteConcurrency > 1 {
		g := new(errgroup.Group)
		g.SetLimit(opts.SiteConcurrency)
		for _, seed := range chunk {
			g.Go(func() error {
				collect(r.safeProcess(ctx, seed))
				return nil
			})
		}
		_ = g.Wait()
		return rows, results
	}

	for _, seed := range chunk {
		collect(r.safeProcess(ctx, seed))
		if d := sleepDuration(opts.SleepMin, opts.SleepMax); d > 0 {
			r.sleep(d)
		}
	}
	return rows, results
}

// safeProcess runs one seed, converting an error or panic into a single
// error:site placeholder.
func (r *Runner) safeProcess(ctx context.Context, seed model.Seed) (recs []model.LeadRecord, res model.SiteResult) {
	start := time.Now()
	fail := func(msg string) {
		recs = []model.LeadRecord{Placeholder(seed, "", model.ReasonSiteError, model.TierC)}
		res = model.SiteResult{
			Seed:       seed,
			Status:     model.SiteStatusError,
			MXStatus:   model.VerificationUnknown,
			Error:      msg,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("pipeline: site panicked",
				zap.String("company", seed.CompanyName),
				zap.String("url", seed.URL),
				zap.Any("panic", p),
			)
			fail(fmt.Sprintf("panic: %v", p))
		}
	}()

	recs, res, err := r.proc.ProcessSeed(ctx, seed)
	if err != nil {
		zap.L().Warn("pipeline: site failed",
			zap.String("company", seed.CompanyName),
			zap.String("url", seed.URL),
			zap.Error(err),
		)
		fail(err.Error())
		return recs, res
	}
	if len(recs) == 0 {
		recs = []model.LeadRecord{Placeholder(seed, res.Domain, model.ReasonNoContactsFound, model.TierC)}
	}
	return recs, res
}

func (r *Runner) startRun(ctx context.Context, opts Options) string {
	if r.store == nil {
		return ""
	}
	run, err := r.store.CreateRun(ctx, opts.Params())
	if err != nil {
		zap.L().Warn("pipeline: create run record failed, continuing without ledger", zap.Error(err))
		return ""
	}
	return run.ID
}

func (r *Runner) recordChunk(ctx context.Context, runID string, results []model.SiteResult, progress model.RunProgress) {
	if r.store == nil || runID == "" {
		return
	}
	if err := r.store.RecordSiteResults(ctx, runID, results); err != nil {
		zap.L().Warn("pipeline: record site results failed", zap.String("run_id", runID), zap.Error(err))
	}
	if err := r.store.UpdateRunProgress(ctx, runID, progress); err != nil {
		zap.L().Warn("pipeline: update run progress failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (r *Runner) finishRun(ctx context.Context, runID string, status model.RunStatus, progress model.RunProgress, msg string) {
	if r.store == nil || runID == "" {
		return
	}
	if err := r.store.FinishRun(context.WithoutCancel(ctx), runID, status, progress, msg); err != nil {
		zap.L().Warn("pipeline: finish run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// Dedup drops rows whose (company_name, email_final, phone) was already seen,
// keeping the first occurrence.
func Dedup(rows []model.LeadRecord) []model.LeadRecord {
	seen := make(map[[3]string]bool, len(rows))
	out := make([]model.LeadRecord, 0, len(rows))
	for _, r := range rows {
		k := r.DedupKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func window(seeds []model.Seed, offset, limit int) []model.Seed {
	if offset > 0 {
		if offset >= len(seeds) {
			return nil
		}
		seeds = seeds[offset:]
	}
	if limit > 0 && limit < len(seeds) {
		seeds = seeds[:limit]
	}
	return seeds
}

func sleepDuration(lo, hi float64) time.Duration {
	if hi <= 0 {
		return 0
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	secs := lo + rand.Float64()*(hi-lo)
	return time.Duration(secs * float64(time.Second))
}
