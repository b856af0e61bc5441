package repositories

import (
	"errors"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SyncJobPostgresRepository struct {
	db *gorm.DB
}

func NewSyncJobPostgresRepository(db *gorm.DB) *SyncJobPostgresRepository {
	return &SyncJobPostgresRepository{db: db}
}

func (r *SyncJobPostgresRepository) EnqueueJob(job *entities.SyncJobEntity) error {
	row := schemas.SyncJob{
		ID:        job.ID,
		ProjectID: job.ProjectID,
		JobType:   job.JobType,
		Status:    entities.SyncJobStatusPending,
		Payload:   job.Payload,
	}
	return r.db.Create(&row).Error
}

// ClaimJob atomically takes the oldest pending job, marks it in progress
// and bumps the attempt counter. Row locking keeps two dispatcher loops
// from claiming the same job.
func (r *SyncJobPostgresRepository) ClaimJob() (*entities.SyncJobEntity, error) {
	var claimed *entities.SyncJobEntity
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var job schemas.SyncJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", entities.SyncJobStatusPending).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.Model(&schemas.SyncJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":   entities.SyncJobStatusInProgress,
				"attempts": job.Attempts + 1,
			}).Error
		if err != nil {
			return err
		}
		job.Status = entities.SyncJobStatusInProgress
		job.Attempts++
		claimed = job.ToEntity()
		return nil
	})
	return claimed, err
}

func (r *SyncJobPostgresRepository) CompleteJob(id string) error {
	return r.db.Model(&schemas.SyncJob{}).
		Where("id = ?", id).
		Update("status", entities.SyncJobStatusCompleted).Error
}

func (r *SyncJobPostgresRepository) FailJob(id string, lastError string, final bool) error {
	status := entities.SyncJobStatusPending
	if final {
		status = entities.SyncJobStatusFailed
	}
	return r.db.Model(&schemas.SyncJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
}

// ReclaimStaleJobs re-queues in-progress rows older than the ceiling so a
// crashed worker cannot strand a job. At-least-once: a job that was in
// fact still running will execute again.
func (r *SyncJobPostgresRepository) ReclaimStaleJobs(olderThan time.Duration) (int64, error) {
	result := r.db.Model(&schemas.SyncJob{}).
		Where("status = ? AND updated_at < ?",
			entities.SyncJobStatusInProgress,
			time.Now().Add(-olderThan)).
		Update("status", entities.SyncJobStatusPending)
	return result.RowsAffected, result.Error
}
