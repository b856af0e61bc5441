package repositories

import (
	"errors"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/schemas"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VersionPostgresRepository struct {
	db *gorm.DB
}

func NewVersionPostgresRepository(db *gorm.DB) *VersionPostgresRepository {
	return &VersionPostgresRepository{db: db}
}

func (r *VersionPostgresRepository) CreateVersion(version *entities.VersionEntity) error {
	return r.db.Create(schemas.VersionFromEntity(version)).Error
}

func (r *VersionPostgresRepository) GetVersionByID(id string) (*entities.VersionEntity, error) {
	var version schemas.Version
	err := r.db.Where("id = ?", id).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return version.ToEntity(), nil
}

func (r *VersionPostgresRepository) GetPublishedVersion(projectID string) (*entities.VersionEntity, error) {
	var version schemas.Version
	err := r.db.Where(
		"project_id = ? AND is_published AND soft_deleted_at IS NULL",
		projectID,
	).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return version.ToEntity(), nil
}

// ListVersions returns the project's versions newest first. state is
// "published", "unpublished" or "all"; tombstoned rows are excluded.
func (r *VersionPostgresRepository) ListVersions(
	projectID string,
	state string,
	limit int,
	offset int,
) ([]*entities.VersionEntity, error) {
	query := r.db.Where("project_id = ? AND soft_deleted_at IS NULL", projectID)
	switch state {
	case "published":
		query = query.Where("is_published")
	case "unpublished":
		query = query.Where("NOT is_published")
	}
	var rows []schemas.Version
	err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	versions := make([]*entities.VersionEntity, 0, len(rows))
	for i := range rows {
		versions = append(versions, rows[i].ToEntity())
	}
	return versions, nil
}

// PublishByTx atomically clears the current published flag, sets it on the
// target, and updates the project's denormalized pointer. Returns the
// previously published version, if any.
func (r *VersionPostgresRepository) PublishByTx(
	projectID string,
	versionID string,
	userID uuid.UUID,
	publishedAt time.Time,
) (*entities.VersionEntity, error) {
	var previous *entities.VersionEntity
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var current schemas.Version
		err := tx.Where(
			"project_id = ? AND is_published AND soft_deleted_at IS NULL",
			projectID,
		).First(&current).Error
		switch {
		case err == nil:
			previous = current.ToEntity()
			err = tx.Model(&schemas.Version{}).
				Where("id = ?", current.ID).
				Updates(map[string]interface{}{
					"is_published":             false,
					"superseded_by_version_id": versionID,
				}).Error
			if err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first publish for this project
		default:
			return err
		}

		err = tx.Model(&schemas.Version{}).
			Where("id = ?", versionID).
			Updates(map[string]interface{}{
				"is_published": true,
				"published_at": publishedAt,
				"published_by": userID,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&schemas.Project{}).
			Where("id = ?", projectID).
			Update("published_version_id", versionID).Error
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// UnpublishByTx clears the published flag and the project pointer in one
// transaction. The version row itself is kept.
func (r *VersionPostgresRepository) UnpublishByTx(projectID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&schemas.Version{}).
			Where("project_id = ? AND is_published", projectID).
			Update("is_published", false).Error
		if err != nil {
			return err
		}
		return tx.Model(&schemas.Project{}).
			Where("id = ?", projectID).
			Update("published_version_id", nil).Error
	})
}

func (r *VersionPostgresRepository) SoftDeleteVersion(id string, at time.Time) error {
	return r.db.Model(&schemas.Version{}).
		Where("id = ?", id).
		Update("soft_deleted_at", at).Error
}

// ArtifactKeyReferenced reports whether any non-tombstoned version still
// points at the storage key. Run inside a transaction so GC cannot race a
// rollback that copies the reference.
func (r *VersionPostgresRepository) ArtifactKeyReferenced(key string) (bool, error) {
	var count int64
	err := r.db.Model(&schemas.Version{}).
		Where("artifact_key = ? AND soft_deleted_at IS NULL", key).
		Count(&count).Error
	return count > 0, err
}

// NewestReferenceAge returns the creation time of the most recent version
// (tombstoned or not) referencing the key; ok is false when none exists.
func (r *VersionPostgresRepository) NewestReferenceAge(key string) (time.Time, bool, error) {
	var version schemas.Version
	err := r.db.Where("artifact_key = ?", key).
		Order("created_at DESC").
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return version.CreatedAt, true, nil
}

var lineageColumns = []string{
	"superseded_by_version_id",
	"rollback_source_version_id",
	"rollback_target_version_id",
}

// clearLineageReferences nulls every lineage pointer at the removed
// version. Lineage is weak: references are cleared, never cascaded.
func clearLineageReferences(tx *gorm.DB, removedID uuid.UUID) error {
	for _, column := range lineageColumns {
		err := tx.Model(&schemas.Version{}).
			Where(column+" = ?", removedID).
			Update(column, nil).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// PurgeSoftDeleted hard-deletes tombstoned rows older than the cutoff,
// clearing any lineage references pointing at them first. Returns the
// number of rows removed.
func (r *VersionPostgresRepository) PurgeSoftDeleted(cutoff time.Time) (int64, error) {
	var purged int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var rows []schemas.Version
		err := tx.Select("id").
			Where("soft_deleted_at IS NOT NULL AND soft_deleted_at < ?", cutoff).
			Find(&rows).Error
		if err != nil {
			return err
		}
		for i := range rows {
			if err := clearLineageReferences(tx, rows[i].ID); err != nil {
				return err
			}
			if err := tx.Delete(&schemas.Version{}, "id = ?", rows[i].ID).Error; err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	return purged, err
}
