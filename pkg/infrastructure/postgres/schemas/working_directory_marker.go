package schemas

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
)

type WorkingDirectoryMarker struct {
	ProjectID        uuid.UUID `gorm:"type:uuid;primaryKey;column:project_id"`
	VersionID        uuid.UUID `gorm:"type:uuid;not null;column:version_id"`
	ArtifactChecksum string    `gorm:"not null;column:artifact_checksum"`
	ExtractedAt      time.Time `gorm:"not null;column:extracted_at"`
}

func (WorkingDirectoryMarker) TableName() string {
	return "working_directory_markers"
}

func (m *WorkingDirectoryMarker) ToEntity() *entities.WorkingDirectoryMarker {
	return &entities.WorkingDirectoryMarker{
		ProjectID:        m.ProjectID,
		VersionID:        m.VersionID,
		ArtifactChecksum: m.ArtifactChecksum,
		ExtractedAt:      m.ExtractedAt,
	}
}
