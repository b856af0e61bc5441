package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SyncJobEntity is one durable row in the shared job queue. Rollback sync
// jobs are tagged with JobTypeRollbackSync and routed by the same worker
// pool that runs build jobs.
type SyncJobEntity struct {
	ID        uuid.UUID      `json:"id"`
	ProjectID uuid.UUID      `json:"projectId"`
	JobType   string         `json:"jobType"`
	Status    SyncJobStatus  `json:"status"`
	Payload   datatypes.JSON `json:"payload"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"lastError,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// MaxJobAttempts bounds retries of dependency failures before a job is
// terminal and the recovery path runs.
const MaxJobAttempts = 3

// JobFailureIsFinal decides whether a failed attempt exhausts the job.
// Dependency failures are transient collaborator trouble and conflict
// failures are transient contention (another worker holding a lock), so
// both get retried up to the budget; validation and integrity failures
// are final immediately.
func JobFailureIsFinal(attempts int, err error) bool {
	switch KindOf(err) {
	case ErrKindDependency, ErrKindConflict:
		return attempts >= MaxJobAttempts
	default:
		return true
	}
}

// RollbackSyncPayload is the job body for a rollback's background step. It
// carries the pre-rollback snapshot so the failure path is a pure function
// of (snapshot, error) regardless of how the job was scheduled.
type RollbackSyncPayload struct {
	ProjectID       uuid.UUID       `json:"projectId"`
	NewVersionID    uuid.UUID       `json:"newVersionId"`
	TargetVersionID uuid.UUID       `json:"targetVersionId"`
	UserID          uuid.UUID       `json:"userId"`
	SkipSync        bool            `json:"skipSync"`
	Snapshot        ProjectSnapshot `json:"snapshot"`
}
