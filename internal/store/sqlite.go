package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leads-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	progress   TEXT NOT NULL DEFAULT '{}',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS site_results (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	company_name  TEXT NOT NULL,
	url           TEXT NOT NULL,
	final_url     TEXT NOT NULL DEFAULT '',
	domain        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	pages_fetched INTEGER NOT NULL DEFAULT 0,
	emails        INTEGER NOT NULL DEFAULT 0,
	phones        INTEGER NOT NULL DEFAULT 0,
	mx_status     TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS mx_cache (
	domain     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	checked_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_site_results_run_id ON site_results(run_id);
CREATE INDEX IF NOT EXISTS idx_mx_cache_checked_at ON mx_cache(checked_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, params, status, progress, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(paramsJSON), string(model.RunStatusRunning), "{}", now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, progress model.RunProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run progress %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, progress model.RunProgress, runErr string) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, progress = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), string(progressJSON), runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, params, status, progress, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, progress, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordSiteResults(ctx context.Context, runID string, results []model.SiteResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin site results")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO site_results
		(id, run_id, company_name, url, final_url, domain, status, pages_fetched, emails, phones, mx_status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare site result insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range siteResultRows(runID, results) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert site result for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit site results")
}

func (s *SQLiteStore) ListSiteResults(ctx context.Context, runID string) ([]model.SiteResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, company_name, url, final_url, domain, status, pages_fetched, emails, phones, mx_status, error, duration_ms, created_at
		 FROM site_results WHERE run_id = ? ORDER BY created_at, company_name, url`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list site results %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SiteResult
	for rows.Next() {
		sr, err := scanSiteResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site result")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list site results iterate")
}

func (s *SQLiteStore) GetCachedMX(ctx context.Context, domain string, maxAge time.Duration) (model.VerificationStatus, bool, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM mx_cache WHERE domain = ? AND checked_at >= ?`,
		domain, cutoff,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: get cached mx")
	}
	return model.VerificationStatus(status), true, nil
}

func (s *SQLiteStore) SetCachedMX(ctx context.Context, domain string, status model.VerificationStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mx_cache (domain, status, checked_at) VALUES (?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET status = excluded.status, checked_at = excluded.checked_at`,
		domain, string(status), time.Now().Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached mx")
}

func (s *SQLiteStore) DeleteExpiredMX(ctx context.Context, maxAge time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mx_cache WHERE checked_at < ?`,
		time.Now().Add(-maxAge).Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired mx")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON, progressJSON string

	err := row.Scan(&r.ID, &paramsJSON, &r.Status, &progressJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRunJSON(&r, []byte(paramsJSON), []byte(progressJSON)); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanSiteResult(row scannable) (model.SiteResult, error) {
	var sr model.SiteResult
	err := row.Scan(
		&sr.ID, &sr.RunID, &sr.Seed.CompanyName, &sr.Seed.URL, &sr.FinalURL, &sr.Domain, &sr.Status,
		&sr.PagesFetched, &sr.Emails, &sr.Phones, &sr.MXStatus, &sr.Error, &sr.DurationMs, &sr.CreatedAt,
	)
	return sr, err
}

func decodeRunJSON(r *model.Run, paramsJSON, progressJSON []byte) error {
	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return eris.Wrap(err, "store: unmarshal params")
	}
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &r.Progress); err != nil {
			return eris.Wrap(err, "store: unmarshal progress")
		}
	}
	return nil
}

// siteResultColumns is the column order shared by the SQLite insert and the
// Postgres COPY.
var siteResultColumns = []string{
	"id", "run_id", "company_name", "url", "final_url", "domain", "status",
	"pages_fetched", "emails", "phones", "mx_status", "error", "duration_ms", "created_at",
}

func siteResultRows(runID string, results []model.SiteResult) [][]any {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(results))
	for _, sr := range results {
		id := sr.ID
		if id == "" {
			id = uuid.New().String()
		}
		created := sr.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows = append(rows, []any{
			id, runID, sr.Seed.CompanyName, sr.Seed.URL, sr.FinalURL, sr.Domain, string(sr.Status),
			sr.PagesFetched, sr.Emails, sr.Phones, string(sr.MXStatus), sr.Error, sr.DurationMs, created,
		})
	}
	return rows
}
