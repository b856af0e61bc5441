package schemas

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
)

type AuditEntry struct {
	ID           uuid.UUID            `gorm:"type:uuid;primaryKey;column:id"`
	ProjectID    uuid.UUID            `gorm:"type:uuid;not null;index;column:project_id"`
	UserID       uuid.UUID            `gorm:"type:uuid;column:user_id"`
	VersionID    *uuid.UUID           `gorm:"type:uuid;column:version_id"`
	Action       string               `gorm:"not null;column:action"`
	FilesWritten int                  `gorm:"column:files_written"`
	ElapsedMs    int64                `gorm:"column:elapsed_ms"`
	Result       entities.AuditResult `gorm:"not null;column:result"`
	Detail       string               `gorm:"column:detail"`
	CreatedAt    time.Time            `gorm:"autoCreateTime;column:created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

func (a *AuditEntry) ToEntity() *entities.AuditEntry {
	return &entities.AuditEntry{
		ID:           a.ID,
		ProjectID:    a.ProjectID,
		UserID:       a.UserID,
		VersionID:    a.VersionID,
		Action:       a.Action,
		FilesWritten: a.FilesWritten,
		ElapsedMs:    a.ElapsedMs,
		Result:       a.Result,
		Detail:       a.Detail,
		CreatedAt:    a.CreatedAt,
	}
}
