// Package store persists the run ledger, per-site outcomes and the MX cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunProgress(ctx context.Context, runID string, progress model.RunProgress) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, progress model.RunProgress, runErr string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Site results
	RecordSiteResults(ctx context.Context, runID string, results []model.SiteResult) error
	ListSiteResults(ctx context.Context, runID string) ([]model.SiteResult, error)

	// MX cache
	GetCachedMX(ctx context.Context, domain string, maxAge time.Duration) (model.VerificationStatus, bool, error)
	SetCachedMX(ctx context.Context, domain string, status model.VerificationStatus) error
	DeleteExpiredMX(ctx context.Context, maxAge time.Duration) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
