package entities

import (
	"time"

	"github.com/google/uuid"
)

type ProjectEntity struct {
	ID                 uuid.UUID     `json:"id"`
	UserID             uuid.UUID     `json:"userId"`
	Name               string        `json:"name"`
	Status             ProjectStatus `json:"status"`
	PublishedVersionID *uuid.UUID    `json:"publishedVersionId,omitempty"`
	PreviewURL         string        `json:"previewUrl"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// ProjectSnapshot captures the fields a rollback must restore if its
// background sync fails. Taken before the first mutation, carried inside
// the job payload, and applied verbatim on the failure path.
type ProjectSnapshot struct {
	Status             ProjectStatus `json:"status"`
	PreviewURL         string        `json:"previewUrl"`
	PublishedVersionID *uuid.UUID    `json:"publishedVersionId,omitempty"`
}

func (p *ProjectEntity) Snapshot() ProjectSnapshot {
	return ProjectSnapshot{
		Status:             p.Status,
		PreviewURL:         p.PreviewURL,
		PublishedVersionID: p.PublishedVersionID,
	}
}
