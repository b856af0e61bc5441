package repositories

import (
	"errors"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/gorm"
)

type ProjectPostgresRepository struct {
	db *gorm.DB
}

func NewProjectPostgresRepository(db *gorm.DB) *ProjectPostgresRepository {
	return &ProjectPostgresRepository{db: db}
}

func (r *ProjectPostgresRepository) GetProjectByID(id string) (*entities.ProjectEntity, error) {
	var project schemas.Project
	err := r.db.Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return project.ToEntity(), nil
}

func (r *ProjectPostgresRepository) UpdateStatus(id string, status entities.ProjectStatus) error {
	return r.db.Model(&schemas.Project{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *ProjectPostgresRepository) UpdateStatusAndPreview(
	id string,
	status entities.ProjectStatus,
	previewURL string,
) error {
	return r.db.Model(&schemas.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"preview_url": previewURL,
		}).Error
}

// RestoreSnapshot writes back the exact pre-operation values captured
// before a rollback began. Used only by the failure recovery path.
func (r *ProjectPostgresRepository) RestoreSnapshot(
	id string,
	snapshot entities.ProjectSnapshot,
) error {
	var publishedID interface{}
	if snapshot.PublishedVersionID != nil {
		publishedID = *snapshot.PublishedVersionID
	}
	return r.db.Model(&schemas.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               snapshot.Status,
			"preview_url":          snapshot.PreviewURL,
			"published_version_id": publishedID,
		}).Error
}

// RepairPublishedPointer reconciles the denormalized published_version_id
// with the ledger's actual published row.
func (r *ProjectPostgresRepository) RepairPublishedPointer(projectID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var published schemas.Version
		err := tx.Where(
			"project_id = ? AND is_published AND soft_deleted_at IS NULL",
			projectID,
		).First(&published).Error

		var pointer interface{}
		switch {
		case err == nil:
			pointer = published.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			pointer = nil
		default:
			return err
		}
		return tx.Model(&schemas.Project{}).
			Where("id = ?", projectID).
			Update("published_version_id", pointer).Error
	})
}
