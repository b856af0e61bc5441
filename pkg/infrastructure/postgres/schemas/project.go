package schemas

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
)

type Project struct {
	ID                 uuid.UUID              `gorm:"type:uuid;primaryKey;column:id"`
	UserID             uuid.UUID              `gorm:"type:uuid;not null;index;column:user_id"`
	Name               string                 `gorm:"not null;column:name"`
	Status             entities.ProjectStatus `gorm:"not null;column:status"`
	PublishedVersionID *uuid.UUID             `gorm:"type:uuid;column:published_version_id"`
	PreviewURL         string                 `gorm:"column:preview_url"`
	CreatedAt          time.Time              `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt          time.Time              `gorm:"autoUpdateTime;column:updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

func (p *Project) ToEntity() *entities.ProjectEntity {
	return &entities.ProjectEntity{
		ID:                 p.ID,
		UserID:             p.UserID,
		Name:               p.Name,
		Status:             p.Status,
		PublishedVersionID: p.PublishedVersionID,
		PreviewURL:         p.PreviewURL,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}
