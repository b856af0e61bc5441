package repositories

import (
	"errors"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarkerPostgresRepository struct {
	db *gorm.DB
}

func NewMarkerPostgresRepository(db *gorm.DB) *MarkerPostgresRepository {
	return &MarkerPostgresRepository{db: db}
}

func (r *MarkerPostgresRepository) UpsertMarker(marker *entities.WorkingDirectoryMarker) error {
	row := schemas.WorkingDirectoryMarker{
		ProjectID:        marker.ProjectID,
		VersionID:        marker.VersionID,
		ArtifactChecksum: marker.ArtifactChecksum,
		ExtractedAt:      marker.ExtractedAt,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version_id", "artifact_checksum", "extracted_at"}),
	}).Create(&row).Error
}

func (r *MarkerPostgresRepository) GetMarker(projectID string) (*entities.WorkingDirectoryMarker, error) {
	var row schemas.WorkingDirectoryMarker
	err := r.db.Where("project_id = ?", projectID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToEntity(), nil
}
