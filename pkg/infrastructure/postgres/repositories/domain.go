package repositories

import (
	"errors"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/gorm"
)

type DomainPostgresRepository struct {
	db *gorm.DB
}

func NewDomainPostgresRepository(db *gorm.DB) *DomainPostgresRepository {
	return &DomainPostgresRepository{db: db}
}

// CreateDomainByTx inserts the domain and, when it is marked primary,
// demotes any existing primary in the same transaction so the project
// never has two primaries.
func (r *DomainPostgresRepository) CreateDomainByTx(domain *entities.PublishedDomainEntity) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if domain.IsPrimary {
			err := tx.Model(&schemas.PublishedDomain{}).
				Where("project_id = ? AND is_primary", domain.ProjectID).
				Update("is_primary", false).Error
			if err != nil {
				return err
			}
		}
		row := schemas.PublishedDomain{
			ProjectID:  domain.ProjectID,
			DomainName: domain.DomainName,
			DomainType: domain.DomainType,
			IsPrimary:  domain.IsPrimary,
			SSLStatus:  domain.SSLStatus,
		}
		return tx.Create(&row).Error
	})
}

func (r *DomainPostgresRepository) GetDomain(
	projectID string,
	domainName string,
) (*entities.PublishedDomainEntity, error) {
	var row schemas.PublishedDomain
	err := r.db.Where(
		"project_id = ? AND domain_name = ?",
		projectID, domainName,
	).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToEntity(), nil
}

func (r *DomainPostgresRepository) ListDomains(projectID string) ([]*entities.PublishedDomainEntity, error) {
	var rows []schemas.PublishedDomain
	err := r.db.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	domains := make([]*entities.PublishedDomainEntity, 0, len(rows))
	for i := range rows {
		domains = append(domains, rows[i].ToEntity())
	}
	return domains, nil
}

func (r *DomainPostgresRepository) UpdateSSLStatus(
	projectID string,
	domainName string,
	status entities.SSLStatus,
	lastError string,
	checkedAt time.Time,
) error {
	return r.db.Model(&schemas.PublishedDomain{}).
		Where("project_id = ? AND domain_name = ?", projectID, domainName).
		Updates(map[string]interface{}{
			"ssl_status":      status,
			"last_error":      lastError,
			"last_checked_at": checkedAt,
		}).Error
}
