package model

import "time"

// RunStatus represents the state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records how a batch run was invoked.
type RunParams struct {
	InputPath       string  `json:"input_path"`
	OutputPath      string  `json:"output_path"`
	Offset          int     `json:"offset"`
	Limit           int     `json:"limit"`
	ChunkSize       int     `json:"chunk_size"`
	SiteConcurrency int     `json:"site_concurrency"`
	PageConcurrency int     `json:"page_concurrency"`
	SleepMin        float64 `json:"sleep_min"`
	SleepMax        float64 `json:"sleep_max"`
	Append          bool    `json:"append"`
	Resume          bool    `json:"resume"`
}

// RunProgress holds the counters of a batch run.
type RunProgress struct {
	SeedsTotal   int `json:"seeds_total"`
	SeedsSkipped int `json:"seeds_skipped"`
	SeedsDone    int `json:"seeds_done"`
	SiteErrors   int `json:"site_errors"`
	RowsWritten  int `json:"rows_written"`
	Chunks       int `json:"chunks"`
}

// Run is one invocation of the run controller.
type Run struct {
	ID        string      `json:"id"`
	Params    RunParams   `json:"params"`
	Status    RunStatus   `json:"status"`
	Progress  RunProgress `json:"progress"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SiteStatus is the outcome of one seed.
type SiteStatus string

const (
	SiteStatusContacts   SiteStatus = "contacts"
	SiteStatusPhoneOnly  SiteStatus = "phone_only"
	SiteStatusNoContacts SiteStatus = "no_contacts"
	SiteStatusError      SiteStatus = "error"
)

// SiteResult summarises what happened to one seed.
type SiteResult struct {
	ID           string             `json:"id"`
	RunID        string             `json:"run_id"`
	Seed         Seed               `json:"seed"`
	FinalURL     string             `json:"final_url"`
	Domain       string             `json:"domain"`
	Status       SiteStatus         `json:"status"`
	PagesFetched int                `json:"pages_fetched"`
	Emails       int                `json:"emails"`
	Phones       int                `json:"phones"`
	MXStatus     VerificationStatus `json:"mx_status"`
	Error        string             `json:"error,omitempty"`
	DurationMs   int64              `json:"duration_ms"`
	CreatedAt    time.Time          `json:"created_at"`
}
