package schemas

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
)

// Version rows are immutable after creation except for the publication
// flags, the tombstone, and lineage back-references. The partial unique
// index enforces the single-published-version invariant at the database
// even under racing writers.
type Version struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index;index:ux_versions_published_per_project,unique,where:is_published AND soft_deleted_at IS NULL;column:project_id"`
	VersionName string    `gorm:"not null;column:version_name"`

	ArtifactChecksum string `gorm:"not null;column:artifact_checksum"`
	ArtifactKey      string `gorm:"not null;index;column:artifact_key"`
	ArtifactSize     int64  `gorm:"not null;column:artifact_size"`
	EndpointURL      string `gorm:"column:endpoint_url"`

	IsPublished bool       `gorm:"not null;default:false;column:is_published"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	PublishedBy *uuid.UUID `gorm:"type:uuid;column:published_by"`

	SoftDeletedAt *time.Time `gorm:"column:soft_deleted_at"`

	SupersededByVersionID   *uuid.UUID `gorm:"type:uuid;column:superseded_by_version_id"`
	RollbackSourceVersionID *uuid.UUID `gorm:"type:uuid;column:rollback_source_version_id"`
	RollbackTargetVersionID *uuid.UUID `gorm:"type:uuid;column:rollback_target_version_id"`

	UserComment string    `gorm:"column:user_comment"`
	CreatedAt   time.Time `gorm:"autoCreateTime;column:created_at"`
}

func (Version) TableName() string {
	return "versions"
}

func (v *Version) ToEntity() *entities.VersionEntity {
	return &entities.VersionEntity{
		ID:          v.ID,
		ProjectID:   v.ProjectID,
		VersionName: v.VersionName,
		Artifact: entities.ArtifactRef{
			Checksum:   v.ArtifactChecksum,
			StorageKey: v.ArtifactKey,
			SizeBytes:  v.ArtifactSize,
		},
		EndpointURL:             v.EndpointURL,
		IsPublished:             v.IsPublished,
		PublishedAt:             v.PublishedAt,
		PublishedBy:             v.PublishedBy,
		SoftDeletedAt:           v.SoftDeletedAt,
		SupersededByVersionID:   v.SupersededByVersionID,
		RollbackSourceVersionID: v.RollbackSourceVersionID,
		RollbackTargetVersionID: v.RollbackTargetVersionID,
		UserComment:             v.UserComment,
		CreatedAt:               v.CreatedAt,
	}
}

func VersionFromEntity(v *entities.VersionEntity) *Version {
	return &Version{
		ID:                      v.ID,
		ProjectID:               v.ProjectID,
		VersionName:             v.VersionName,
		ArtifactChecksum:        v.Artifact.Checksum,
		ArtifactKey:             v.Artifact.StorageKey,
		ArtifactSize:            v.Artifact.SizeBytes,
		EndpointURL:             v.EndpointURL,
		IsPublished:             v.IsPublished,
		PublishedAt:             v.PublishedAt,
		PublishedBy:             v.PublishedBy,
		SoftDeletedAt:           v.SoftDeletedAt,
		SupersededByVersionID:   v.SupersededByVersionID,
		RollbackSourceVersionID: v.RollbackSourceVersionID,
		RollbackTargetVersionID: v.RollbackTargetVersionID,
		UserComment:             v.UserComment,
		CreatedAt:               v.CreatedAt,
	}
}
