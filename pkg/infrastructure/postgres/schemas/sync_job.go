package schemas

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SyncJob struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey;column:id"`
	ProjectID uuid.UUID              `gorm:"type:uuid;not null;index;column:project_id"`
	JobType   string                 `gorm:"not null;index;column:job_type"`
	Status    entities.SyncJobStatus `gorm:"not null;index;column:status"`
	Payload   datatypes.JSON         `gorm:"type:jsonb;not null;column:payload"`
	Attempts  int                    `gorm:"not null;default:0;column:attempts"`
	LastError string                 `gorm:"column:last_error"`
	CreatedAt time.Time              `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt time.Time              `gorm:"autoUpdateTime;column:updated_at"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}

func (j *SyncJob) ToEntity() *entities.SyncJobEntity {
	return &entities.SyncJobEntity{
		ID:        j.ID,
		ProjectID: j.ProjectID,
		JobType:   j.JobType,
		Status:    j.Status,
		Payload:   j.Payload,
		Attempts:  j.Attempts,
		LastError: j.LastError,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
