package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/db"
	"github.com/sells-group/leads-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":          `INSERT INTO runs (id, params, status, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_progress": `UPDATE runs SET progress = $1, updated_at = $2 WHERE id = $3`,
	"get_run":             `SELECT id, params, status, progress, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_cached_mx":       `SELECT status FROM mx_cache WHERE domain = $1 AND checked_at >= $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	progress   JSONB NOT NULL DEFAULT '{}'::jsonb,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS site_results (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mx_cache (
	domain     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	checked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_site_results_run_id ON site_results(run_id);
CREATE INDEX IF NOT EXISTS idx_mx_cache_checked_at ON mx_cache(checked_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, status, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, paramsJSON, string(model.RunStatusRunning), []byte("{}"), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunProgress(ctx context.Context, runID string, progress model.RunProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET progress = $1, updated_at = $2 WHERE id = $3`,
		progressJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run progress %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, progress model.RunProgress, runErr string) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, progress = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), progressJSON, runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var paramsJSON, progressJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, params, status, progress, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &paramsJSON, &r.Status, &progressJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if err := decodeRunJSON(&r, paramsJSON, progressJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, progress, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, defaultLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var paramsJSON, progressJSON []byte
		if err := rows.Scan(&r.ID, &paramsJSON, &r.Status, &progressJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := decodeRunJSON(&r, paramsJSON, progressJSON); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordSiteResults(ctx context.Context, runID string, results []model.SiteResult) error {
	_, err := db.CopyFrom(ctx, s.pool, "site_results", siteResultColumns, siteResultRows(runID, results))
	return eris.Wrapf(err, "postgres: record site results for run %s", runID)
}

func (s *PostgresStore) ListSiteResults(ctx context.Context, runID string) ([]model.SiteResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, company_name, url, final_url, domain, status, pages_fetched, emails, phones, mx_status, error, duration_ms, created_at
		 FROM site_results WHERE run_id = $1 ORDER BY created_at, company_name, url`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list site results %s", runID)
	}
	defer rows.Close()

	var out []model.SiteResult
	for rows.Next() {
		sr, err := scanSiteResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan site result")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list site results iterate")
}

func (s *PostgresStore) GetCachedMX(ctx context.Context, domain string, maxAge time.Duration) (model.VerificationStatus, bool, error) {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM mx_cache WHERE domain = $1 AND checked_at >= $2`,
		domain, time.Now().UTC().Add(-maxAge),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, eris.Wrap(err, "postgres: get cached mx")
	}
	return model.VerificationStatus(status), true, nil
}

func (s *PostgresStore) SetCachedMX(ctx context.Context, domain string, status model.VerificationStatus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mx_cache (domain, status, checked_at) VALUES ($1, $2, $3)
		 ON CONFLICT (domain) DO UPDATE SET status = $2, checked_at = $3`,
		domain, string(status), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set cached mx")
}

func (s *PostgresStore) DeleteExpiredMX(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM mx_cache WHERE checked_at < $1`,
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired mx")
	}
	return int(tag.RowsAffected()), nil
}
