package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/leadcsv"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

// echoProcessor emits one named-email row per seed.
type echoProcessor struct {
	calls atomic.Int64
	seen  chan model.Seed
	fn    func(seed model.Seed) ([]model.LeadRecord, error)
}

func (e *echoProcessor) ProcessSeed(_ context.Context, seed model.Seed) ([]model.LeadRecord, model.SiteResult, error) {
	e.calls.Add(1)
	if e.seen != nil {
		e.seen <- seed
	}
	res := model.SiteResult{Seed: seed, Status: model.SiteStatusContacts}
	if e.fn != nil {
		recs, err := e.fn(seed)
		return recs, res, err
	}
	return []model.LeadRecord{{
		CompanyName: seed.CompanyName,
		URL:         seed.URL,
		EmailFinal:  "jane@" + seed.URL,
		Reason:      model.ReasonRegexScrape,
		Qualified:   model.QualifiedYes,
		Score:       3,
	}}, res, nil
}

func writeSeeds(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("company_name,url\n")
	for i := range n {
		fmt.Fprintf(&b, "Co %d,co%d.com\n", i, i)
	}
	path := filepath.Join(dir, "seeds.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testOptions(dir, input string) Options {
	return Options{
		InputPath:       input,
		OutputPath:      filepath.Join(dir, "out.csv"),
		ChunkSize:       2,
		SiteConcurrency: 1,
		Append:          true,
		Resume:          true,
	}
}

func newTestRunner(proc SeedProcessor, st store.Store) *Runner {
	r := NewRunner(proc, st)
	r.sleep = func(time.Duration) {}
	return r
}

func outputLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRunner_ChunksAndHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 5))

	progress, err := newTestRunner(&echoProcessor{}, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 5, progress.SeedsTotal)
	assert.Equal(t, 5, progress.SeedsDone)
	assert.Equal(t, 5, progress.RowsWritten)
	assert.Equal(t, 3, progress.Chunks)

	lines := outputLines(t, opts.OutputPath)
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(leadcsv.CoreColumns, ","), lines[0])
	assert.Equal(t, "Co 0,co0.com,,jane@co0.com,,,,,regex_scrape,yes,,3", lines[1])
}

func TestRunner_Resume(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 3))

	w := leadcsv.NewWriter(opts.OutputPath, nil)
	_, err := w.Append([]model.LeadRecord{{CompanyName: "Co 1", URL: "co1.com", EmailFinal: "old@co1.com"}})
	require.NoError(t, err)

	proc := &echoProcessor{seen: make(chan model.Seed, 10)}
	progress, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	close(proc.seen)

	var processed []string
	for s := range proc.seen {
		processed = append(processed, s.CompanyName)
	}
	assert.Equal(t, []string{"Co 0", "Co 2"}, processed)
	assert.Equal(t, 1, progress.SeedsSkipped)

	lines := outputLines(t, opts.OutputPath)
	require.Len(t, lines, 4)
	assert.Equal(t, 1, strings.Count(strings.Join(lines, "\n"), "Co 1,"))

	// A second run finds nothing left to do.
	again := &echoProcessor{}
	progress, err = newTestRunner(again, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.calls.Load())
	assert.Equal(t, 3, progress.SeedsSkipped)
	assert.Len(t, outputLines(t, opts.OutputPath), 4)
}

func TestRunner_NoAppendTruncates(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 2))
	require.NoError(t, os.WriteFile(opts.OutputPath, []byte("company_name,url\nCo 0,co0.com\n"), 0o644))

	opts.Append = false
	proc := &echoProcessor{}
	_, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), proc.calls.Load())

	lines := outputLines(t, opts.OutputPath)
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(leadcsv.CoreColumns, ","), lines[0])
}

func TestRunner_OffsetLimit(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 6))
	opts.Offset = 2
	opts.Limit = 3

	proc := &echoProcessor{seen: make(chan model.Seed, 10)}
	progress, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	close(proc.seen)

	var got []string
	for s := range proc.seen {
		got = append(got, s.URL)
	}
	assert.Equal(t, []string{"co2.com", "co3.com", "co4.com"}, got)
	assert.Equal(t, 3, progress.SeedsTotal)
}

func TestRunner_PanicAndErrorBecomePlaceholders(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 4))
	opts.SiteConcurrency = 3

	proc := &echoProcessor{fn: func(seed model.Seed) ([]model.LeadRecord, error) {
		switch seed.URL {
		case "co1.com":
			panic("boom")
		case "co2.com":
			return nil, fmt.Errorf("exploded")
		}
		return []model.LeadRecord{{CompanyName: seed.CompanyName, URL: seed.URL, Phone: "+15551234567"}}, nil
	}}

	progress, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.SiteErrors)
	assert.Equal(t, 4, progress.RowsWritten)

	recs, _, err := leadcsv.ReadLeads(opts.OutputPath)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	byURL := make(map[string]model.LeadRecord)
	for _, r := range recs {
		byURL[r.URL] = r
	}
	for _, u := range []string{"co1.com", "co2.com"} {
		assert.Equal(t, model.ReasonSiteError, byURL[u].Reason)
		assert.Equal(t, model.QualifiedNo, byURL[u].Qualified)
		assert.Equal(t, model.VerificationUnknown, byURL[u].VerificationStatus)
		assert.Equal(t, model.Score(0), byURL[u].Score)
	}
	assert.Equal(t, "+15551234567", byURL["co3.com"].Phone)
}

func TestRunner_DedupWithinChunk(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 1))

	proc := &echoProcessor{fn: func(seed model.Seed) ([]model.LeadRecord, error) {
		r := model.LeadRecord{CompanyName: seed.CompanyName, URL: seed.URL, EmailFinal: "a@x.com"}
		return []model.LeadRecord{r, r, {CompanyName: seed.CompanyName, URL: seed.URL, EmailFinal: "b@x.com"}}, nil
	}}
	progress, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.RowsWritten)
}

func TestDedup_Idempotent(t *testing.T) {
	rows := []model.LeadRecord{
		{CompanyName: "A", EmailFinal: "a@a.com"},
		{CompanyName: "A", EmailFinal: "a@a.com", Reason: "dup"},
		{CompanyName: "A", Phone: "+1"},
		{CompanyName: "B", EmailFinal: "a@a.com"},
	}
	once := Dedup(rows)
	assert.Len(t, once, 3)
	assert.Equal(t, "", once[0].Reason)
	assert.Equal(t, once, Dedup(once))
}

func TestRunner_MissingInput(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, filepath.Join(dir, "missing.csv"))

	proc := &echoProcessor{}
	_, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, int64(0), proc.calls.Load())
	_, statErr := os.Stat(opts.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_EmptyInputStillWritesHeader(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 0))

	_, err := newTestRunner(&echoProcessor{}, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{strings.Join(leadcsv.CoreColumns, ",")}, outputLines(t, opts.OutputPath))
}

func TestRunner_CancelStopsBetweenChunks(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 6))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc := &echoProcessor{fn: func(seed model.Seed) ([]model.LeadRecord, error) {
		if seed.URL == "co0.com" {
			cancel()
		}
		return []model.LeadRecord{{CompanyName: seed.CompanyName, URL: seed.URL}}, nil
	}}

	progress, err := newTestRunner(proc, nil).Run(ctx, opts)
	require.Error(t, err)
	assert.Equal(t, 1, progress.Chunks)
	assert.Equal(t, 2, progress.SeedsDone)
	assert.Equal(t, int64(2), proc.calls.Load())
	assert.Len(t, outputLines(t, opts.OutputPath), 3)
}

func TestRunner_SequentialSleeps(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 3))
	opts.SleepMin, opts.SleepMax = 0.5, 1.0

	var slept []time.Duration
	r := NewRunner(&echoProcessor{}, nil)
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := r.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, slept, 3)
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}

	opts.Append = false
	opts.SiteConcurrency = 2
	slept = nil
	_, err = r.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, slept)
}

func TestRunner_RecordsLedger(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 3))

	st, err := store.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = newTestRunner(&echoProcessor{}, st).Run(context.Background(), opts)
	require.NoError(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 3, runs[0].Progress.SeedsDone)
	assert.Equal(t, opts.InputPath, runs[0].Params.InputPath)

	results, err := st.ListSiteResults(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRunner_ProcessorMock(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeSeeds(t, dir, 1))

	proc := new(mockProcessor)
	seed := model.Seed{CompanyName: "Co 0", URL: "co0.com"}
	proc.On("ProcessSeed", mock.Anything, seed).
		Return(nil, model.SiteResult{Seed: seed, Domain: "co0.com", Status: model.SiteStatusNoContacts}, nil).Once()

	progress, err := newTestRunner(proc, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.RowsWritten)
	proc.AssertExpectations(t)

	recs, _, err := leadcsv.ReadLeads(opts.OutputPath)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ReasonNoContactsFound, recs[0].Reason)
}
