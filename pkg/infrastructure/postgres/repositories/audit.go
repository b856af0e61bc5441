package repositories

import (
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/schemas"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditPostgresRepository struct {
	db *gorm.DB
}

func NewAuditPostgresRepository(db *gorm.DB) *AuditPostgresRepository {
	return &AuditPostgresRepository{db: db}
}

func (r *AuditPostgresRepository) CreateEntry(entry *entities.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	row := schemas.AuditEntry{
		ID:           entry.ID,
		ProjectID:    entry.ProjectID,
		UserID:       entry.UserID,
		VersionID:    entry.VersionID,
		Action:       entry.Action,
		FilesWritten: entry.FilesWritten,
		ElapsedMs:    entry.ElapsedMs,
		Result:       entry.Result,
		Detail:       entry.Detail,
	}
	return r.db.Create(&row).Error
}

func (r *AuditPostgresRepository) ListEntries(projectID string, limit int) ([]*entities.AuditEntry, error) {
	var rows []schemas.AuditEntry
	err := r.db.Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*entities.AuditEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToEntity())
	}
	return entries, nil
}
