package schemas

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
)

type PublishedDomain struct {
	ProjectID     uuid.UUID           `gorm:"type:uuid;primaryKey;column:project_id"`
	DomainName    string              `gorm:"primaryKey;column:domain_name"`
	DomainType    entities.DomainType `gorm:"not null;column:domain_type"`
	IsPrimary     bool                `gorm:"not null;default:false;column:is_primary"`
	SSLStatus     entities.SSLStatus  `gorm:"not null;column:ssl_status"`
	LastCheckedAt *time.Time          `gorm:"column:last_checked_at"`
	LastError     string              `gorm:"column:last_error"`
	CreatedAt     time.Time           `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime;column:updated_at"`
}

func (PublishedDomain) TableName() string {
	return "published_domains"
}

func (d *PublishedDomain) ToEntity() *entities.PublishedDomainEntity {
	return &entities.PublishedDomainEntity{
		ProjectID:     d.ProjectID,
		DomainName:    d.DomainName,
		DomainType:    d.DomainType,
		IsPrimary:     d.IsPrimary,
		SSLStatus:     d.SSLStatus,
		LastCheckedAt: d.LastCheckedAt,
		LastError:     d.LastError,
		CreatedAt:     d.CreatedAt,
	}
}
