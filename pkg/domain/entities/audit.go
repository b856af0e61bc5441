package entities

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is append-only. It is the only record of "who overwrote file
// X at time T", so the sync worker writes one on every outcome.
type AuditEntry struct {
	ID           uuid.UUID   `json:"id"`
	ProjectID    uuid.UUID   `json:"projectId"`
	UserID       uuid.UUID   `json:"userId"`
	VersionID    *uuid.UUID  `json:"versionId,omitempty"`
	Action       string      `json:"action"`
	FilesWritten int         `json:"filesWritten"`
	ElapsedMs    int64       `json:"elapsedMs"`
	Result       AuditResult `json:"result"`
	Detail       string      `json:"detail,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// WorkingDirectoryMarker records what is materialized on the project's
// working copy right now. Written only by the sync worker, after its git
// commit succeeds.
type WorkingDirectoryMarker struct {
	ProjectID        uuid.UUID `json:"projectId"`
	VersionID        uuid.UUID `json:"versionId"`
	ArtifactChecksum string    `json:"artifactChecksum"`
	ExtractedAt      time.Time `json:"extractedAt"`
}
