package dtos

import (
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"github.com/google/uuid"
)

type PublishRequest struct {
	VersionID string `json:"versionId" binding:"required"`
	Comment   string `json:"comment"`
}

func (request *PublishRequest) Validate() error {
	if _, err := uuid.Parse(request.VersionID); err != nil {
		return entities.NewValidationError("versionId must be a UUID")
	}
	return nil
}

type RollbackRequest struct {
	TargetVersionID          string `json:"targetVersionId" binding:"required"`
	SkipWorkingDirectorySync bool   `json:"skipWorkingDirectorySync"`
}

func (request *RollbackRequest) Validate() error {
	if _, err := uuid.Parse(request.TargetVersionID); err != nil {
		return entities.NewValidationError("targetVersionId must be a UUID")
	}
	return nil
}

type AddDomainRequest struct {
	DomainName string `json:"domainName" binding:"required"`
	DomainType string `json:"domainType" binding:"required"`
	IsPrimary  bool   `json:"isPrimary"`
}

func (request *AddDomainRequest) Validate() error {
	if !entities.ValidDomainName(request.DomainName) {
		return entities.ErrInvalidDomainName
	}
	switch entities.DomainType(request.DomainType) {
	case entities.DomainTypePlatformSubdomain, entities.DomainTypeCustom:
		return nil
	default:
		return entities.NewValidationError("domainType must be platform-subdomain or custom")
	}
}

// VersionResponse decorates a version with the computed capability flags
// the UI uses to render publish/unpublish affordances.
type VersionResponse struct {
	*entities.VersionEntity
	CanPublish   bool `json:"canPublish"`
	CanUnpublish bool `json:"canUnpublish"`
}

func NewVersionResponse(version *entities.VersionEntity) VersionResponse {
	return VersionResponse{
		VersionEntity: version,
		CanPublish:    version.CanPublish(),
		CanUnpublish:  version.CanUnpublish(),
	}
}

func NewVersionResponses(versions []*entities.VersionEntity) []VersionResponse {
	responses := make([]VersionResponse, 0, len(versions))
	for _, version := range versions {
		responses = append(responses, NewVersionResponse(version))
	}
	return responses
}
