package entities

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// versionNameRegex enforces the strict MAJOR.MINOR.PATCH[-label] form.
var versionNameRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z][0-9A-Za-z.-]*)?$`)

func ValidVersionName(name string) bool {
	return versionNameRegex.MatchString(name)
}

// ArtifactRef identifies one immutable stored artifact. Never mutated
// after the owning version is created; rollback copies it by reference.
type ArtifactRef struct {
	Checksum   string `json:"checksum"`
	StorageKey string `json:"storageKey"`
	SizeBytes  int64  `json:"sizeBytes"`
}

func (r ArtifactRef) Empty() bool {
	return r.Checksum == "" || r.StorageKey == ""
}

type VersionEntity struct {
	ID          uuid.UUID   `json:"id"`
	ProjectID   uuid.UUID   `json:"projectId"`
	VersionName string      `json:"versionName"`
	Artifact    ArtifactRef `json:"artifact"`
	EndpointURL string      `json:"endpointUrl"`

	IsPublished bool       `json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	PublishedBy *uuid.UUID `json:"publishedBy,omitempty"`

	SoftDeletedAt *time.Time `json:"softDeletedAt,omitempty"`

	SupersededByVersionID   *uuid.UUID `json:"supersededByVersionId,omitempty"`
	RollbackSourceVersionID *uuid.UUID `json:"rollbackSourceVersionId,omitempty"`
	RollbackTargetVersionID *uuid.UUID `json:"rollbackTargetVersionId,omitempty"`

	UserComment string    `json:"userComment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (v *VersionEntity) IsSoftDeleted() bool {
	return v.SoftDeletedAt != nil
}

// CanPublish reports whether the version is eligible to go live: present,
// not tombstoned, carrying an artifact, and not already the live one.
func (v *VersionEntity) CanPublish() bool {
	return !v.IsSoftDeleted() && !v.Artifact.Empty() && !v.IsPublished
}

func (v *VersionEntity) CanUnpublish() bool {
	return v.IsPublished && !v.IsSoftDeleted()
}
