package models

import "time"

// Job types correspond to the raw tables a sync fills.
const (
	JobItemsRaw      = "items_raw"
	JobOrdersRaw     = "orders_raw"
	JobQnARaw        = "qna_raw"
	JobCategoriesRaw = "categories_raw"
)

// Job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// StaleJobError is written to last_error when the sweep reclaims a job.
const StaleJobError = "stale job: no heartbeat within TTL, reclaimed by sweep"

// SyncJob is the persisted record of one sync run. Rows are never deleted;
// a finished or swept job stays around as history.
type SyncJob struct {
	ID           string     `json:"id"`
	SupplierCode string     `json:"supplier_code"`
	JobType      string     `json:"job_type"`
	Status       string     `json:"status"`
	Params       JobParams  `json:"params"`
	Progress     int        `json:"progress"`
	LastError    *string    `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive reports whether the job still counts against the single-flight
// guard.
func (j *SyncJob) IsActive() bool {
	return j.Status == JobQueued || j.Status == JobRunning
}

func ValidJobType(t string) bool {
	switch t {
	case JobItemsRaw, JobOrdersRaw, JobQnARaw, JobCategoriesRaw:
		return true
	}
	return false
}
