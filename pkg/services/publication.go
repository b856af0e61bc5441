package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/events"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/hosting"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProjectRepository interface {
	GetProjectByID(id string) (*entities.ProjectEntity, error)
	UpdateStatus(id string, status entities.ProjectStatus) error
	UpdateStatusAndPreview(id string, status entities.ProjectStatus, previewURL string) error
	RestoreSnapshot(id string, snapshot entities.ProjectSnapshot) error
	RepairPublishedPointer(projectID string) error
}

type VersionRepository interface {
	CreateVersion(version *entities.VersionEntity) error
	GetVersionByID(id string) (*entities.VersionEntity, error)
	GetPublishedVersion(projectID string) (*entities.VersionEntity, error)
	ListVersions(projectID string, state string, limit int, offset int) ([]*entities.VersionEntity, error)
	PublishByTx(projectID string, versionID string, userID uuid.UUID, publishedAt time.Time) (*entities.VersionEntity, error)
	UnpublishByTx(projectID string) error
	SoftDeleteVersion(id string, at time.Time) error
}

type DomainRepository interface {
	CreateDomainByTx(domain *entities.PublishedDomainEntity) error
	GetDomain(projectID string, domainName string) (*entities.PublishedDomainEntity, error)
	ListDomains(projectID string) ([]*entities.PublishedDomainEntity, error)
	UpdateSSLStatus(projectID string, domainName string, status entities.SSLStatus, lastError string, checkedAt time.Time) error
}

type Locker interface {
	Acquire(ctx context.Context, projectID string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, projectID string, token string) error
}

type IdempotencyCache interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Remember(ctx context.Context, key string, response []byte) error
}

type HostingClient interface {
	RepointAlias(ctx context.Context, domain string, endpointURL string) (hosting.RepointResult, error)
	VerifyDomain(ctx context.Context, domain string) (bool, error)
	CertStatus(ctx context.Context, domain string) (entities.SSLStatus, string, error)
}

type ArtifactVerifier interface {
	Verify(key string, checksum string) error
}

type EventBus interface {
	Publish(event events.Event)
}

type TaskManager interface {
	Start()
	AddTask(task entities.Task)
	Stop()
}

// publishLockTTL bounds the publish fast path: its mutating phase is one
// transaction plus alias repoints, all bounded by the hosting client
// timeout.
const publishLockTTL = 15 * time.Second

// PublishResult is the response payload, also the unit cached for
// idempotent replay.
type PublishResult struct {
	PublishedVersion    *entities.VersionEntity           `json:"publishedVersion"`
	PreviouslyPublished *entities.VersionEntity           `json:"previouslyPublished,omitempty"`
	Domains             []*entities.PublishedDomainEntity `json:"domains"`
	Pending             bool                              `json:"pending"`
	Replayed            bool                              `json:"-"`
}

type PublicationService struct {
	projectRepo ProjectRepository
	versionRepo VersionRepository
	domainRepo  DomainRepository
	locker      Locker
	idempotency IdempotencyCache
	hosting     HostingClient
	artifacts   ArtifactVerifier
	eventBus    EventBus
	taskManager TaskManager
}

func NewPublicationService(
	projectRepo ProjectRepository,
	versionRepo VersionRepository,
	domainRepo DomainRepository,
	locker Locker,
	idempotency IdempotencyCache,
	hostingClient HostingClient,
	artifacts ArtifactVerifier,
	eventBus EventBus,
	taskManager TaskManager,
) *PublicationService {
	return &PublicationService{
		projectRepo: projectRepo,
		versionRepo: versionRepo,
		domainRepo:  domainRepo,
		locker:      locker,
		idempotency: idempotency,
		hosting:     hostingClient,
		artifacts:   artifacts,
		eventBus:    eventBus,
		taskManager: taskManager,
	}
}

// Publish marks exactly one version live for the project and repoints the
// project's domains at its endpoint. Retries with the same idempotency key
// replay the first response without re-executing.
func (s *PublicationService) Publish(
	ctx context.Context,
	projectID uuid.UUID,
	versionID uuid.UUID,
	userID uuid.UUID,
	idempotencyKey string,
) (*PublishResult, error) {
	if idempotencyKey != "" {
		if cached, found, err := s.idempotency.Lookup(ctx, idempotencyKey); err != nil {
			logger.Error("idempotency lookup failed", zap.Error(err))
		} else if found {
			var result PublishResult
			if err := json.Unmarshal(cached, &result); err == nil {
				result.Replayed = true
				return &result, nil
			}
		}
	}

	version, err := s.validatePublishTarget(projectID, versionID)
	if err != nil {
		return nil, err
	}

	token, ok, err := s.locker.Acquire(ctx, projectID.String(), publishLockTTL)
	if err != nil {
		return nil, entities.NewDependencyError("acquiring project lock", err)
	}
	if !ok {
		return nil, entities.ErrProjectLocked
	}
	defer func() {
		if err := s.locker.Release(ctx, projectID.String(), token); err != nil {
			logger.Error("failed to release project lock",
				zap.String("projectId", projectID.String()), zap.Error(err))
		}
	}()

	now := time.Now().UTC()
	previous, err := s.versionRepo.PublishByTx(projectID.String(), versionID.String(), userID, now)
	if err != nil {
		logger.Error("publish transaction failed",
			zap.String("projectId", projectID.String()),
			zap.String("versionId", versionID.String()),
			zap.Error(err))
		return nil, entities.NewDependencyError("publishing version", err)
	}

	version.IsPublished = true
	version.PublishedAt = &now
	version.PublishedBy = &userID

	domains, pending := s.repointDomains(ctx, projectID, version)

	result := &PublishResult{
		PublishedVersion:    version,
		PreviouslyPublished: previous,
		Domains:             domains,
		Pending:             pending,
	}

	if idempotencyKey != "" {
		if body, err := json.Marshal(result); err == nil {
			if err := s.idempotency.Remember(ctx, idempotencyKey, body); err != nil {
				logger.Error("failed to store idempotency record", zap.Error(err))
			}
		}
	}

	s.eventBus.Publish(events.Event{
		ProjectID: projectID,
		Type:      events.TypePublished,
		Data:      map[string]string{"versionId": versionID.String()},
	})

	logger.Info("version published",
		zap.String("projectId", projectID.String()),
		zap.String("versionId", versionID.String()))
	return result, nil
}

// validatePublishTarget checks each publish precondition and fails with
// the distinct error for the first violated one.
func (s *PublicationService) validatePublishTarget(
	projectID uuid.UUID,
	versionID uuid.UUID,
) (*entities.VersionEntity, error) {
	project, err := s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return nil, entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return nil, entities.ErrProjectNotFound
	}
	version, err := s.versionRepo.GetVersionByID(versionID.String())
	if err != nil {
		return nil, entities.NewDependencyError("loading version", err)
	}
	if version == nil {
		return nil, entities.ErrVersionNotFound
	}
	if version.ProjectID != projectID {
		return nil, entities.ErrVersionWrongProject
	}
	if version.IsSoftDeleted() {
		return nil, entities.ErrVersionSoftDeleted
	}
	if version.Artifact.Empty() {
		return nil, entities.ErrVersionNoArtifact
	}
	if version.IsPublished {
		return nil, entities.ErrAlreadyPublished
	}
	if err := s.artifacts.Verify(version.Artifact.StorageKey, version.Artifact.Checksum); err != nil {
		return nil, err
	}
	return version, nil
}

// repointDomains updates the hosting alias for every domain of the
// project. Per-domain failures are recorded on the domain row and do not
// undo the publication; the reported pending flag drives the 202 response.
func (s *PublicationService) repointDomains(
	ctx context.Context,
	projectID uuid.UUID,
	version *entities.VersionEntity,
) ([]*entities.PublishedDomainEntity, bool) {
	domains, err := s.domainRepo.ListDomains(projectID.String())
	if err != nil {
		// Domain state is unknown, which must not read as "no domains,
		// all clean": report pending so the caller sees a 202.
		logger.Error("failed to list project domains", zap.Error(err))
		return nil, true
	}
	pending := false
	for _, domain := range domains {
		result, err := s.hosting.RepointAlias(ctx, domain.DomainName, version.EndpointURL)
		now := time.Now().UTC()
		if err != nil {
			logger.Error("alias repoint failed",
				zap.String("domain", domain.DomainName), zap.Error(err))
			if updateErr := s.domainRepo.UpdateSSLStatus(
				projectID.String(), domain.DomainName,
				entities.SSLStatusFailed, err.Error(), now,
			); updateErr != nil {
				logger.Error("failed to record domain error", zap.Error(updateErr))
			}
			domain.SSLStatus = entities.SSLStatusFailed
			domain.LastError = err.Error()
			continue
		}
		if result.Pending {
			pending = true
		}
		if domain.SSLStatus != entities.SSLStatusActive {
			pending = pending || domain.SSLStatus == entities.SSLStatusPending
		}
	}
	return domains, pending
}

// Unpublish takes the project offline. The structural inverse of Publish;
// never deletes the version.
func (s *PublicationService) Unpublish(
	ctx context.Context,
	projectID uuid.UUID,
	userID uuid.UUID,
) error {
	project, err := s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return entities.ErrProjectNotFound
	}
	published, err := s.versionRepo.GetPublishedVersion(projectID.String())
	if err != nil {
		return entities.NewDependencyError("loading published version", err)
	}
	if published == nil {
		return entities.ErrNothingPublished
	}

	token, ok, err := s.locker.Acquire(ctx, projectID.String(), publishLockTTL)
	if err != nil {
		return entities.NewDependencyError("acquiring project lock", err)
	}
	if !ok {
		return entities.ErrProjectLocked
	}
	defer func() {
		if err := s.locker.Release(ctx, projectID.String(), token); err != nil {
			logger.Error("failed to release project lock", zap.Error(err))
		}
	}()

	if err := s.versionRepo.UnpublishByTx(projectID.String()); err != nil {
		return entities.NewDependencyError("unpublishing version", err)
	}

	s.eventBus.Publish(events.Event{
		ProjectID: projectID,
		Type:      events.TypeUnpublished,
		Data:      map[string]string{"versionId": published.ID.String()},
	})
	logger.Info("version unpublished",
		zap.String("projectId", projectID.String()),
		zap.String("versionId", published.ID.String()))
	return nil
}

// DeleteVersion tombstones a version. The live version cannot be deleted;
// unpublish first. The version row and its artifact survive until the GC
// sweep ages them out, so lineage lookups keep resolving in the meantime.
func (s *PublicationService) DeleteVersion(
	ctx context.Context,
	projectID uuid.UUID,
	versionID uuid.UUID,
	userID uuid.UUID,
) error {
	project, err := s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return entities.ErrProjectNotFound
	}
	version, err := s.versionRepo.GetVersionByID(versionID.String())
	if err != nil {
		return entities.NewDependencyError("loading version", err)
	}
	if version == nil {
		return entities.ErrVersionNotFound
	}
	if version.ProjectID != projectID {
		return entities.ErrVersionWrongProject
	}
	if version.IsSoftDeleted() {
		return entities.ErrVersionSoftDeleted
	}
	if version.IsPublished {
		return entities.NewConflictError("version is published, unpublish before deleting")
	}

	if err := s.versionRepo.SoftDeleteVersion(versionID.String(), time.Now().UTC()); err != nil {
		return entities.NewDependencyError("deleting version", err)
	}
	logger.Info("version deleted",
		zap.String("projectId", projectID.String()),
		zap.String("versionId", versionID.String()),
		zap.String("userId", userID.String()))
	return nil
}

// ListVersions returns the project's version history. The denormalized
// published pointer is read-repaired here when it disagrees with the
// ledger.
func (s *PublicationService) ListVersions(
	projectID uuid.UUID,
	state string,
	limit int,
	offset int,
) ([]*entities.VersionEntity, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	switch state {
	case "published", "unpublished", "all", "":
	default:
		return nil, entities.NewValidationError("unknown state filter %q", state)
	}

	project, err := s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return nil, entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return nil, entities.ErrProjectNotFound
	}

	published, err := s.versionRepo.GetPublishedVersion(projectID.String())
	if err != nil {
		return nil, entities.NewDependencyError("loading published version", err)
	}
	if pointerDisagrees(project, published) {
		logger.Warn("published pointer disagrees with ledger, repairing",
			zap.String("projectId", projectID.String()))
		if err := s.projectRepo.RepairPublishedPointer(projectID.String()); err != nil {
			logger.Error("read repair failed", zap.Error(err))
		}
	}

	return s.versionRepo.ListVersions(projectID.String(), state, limit, offset)
}

func pointerDisagrees(project *entities.ProjectEntity, published *entities.VersionEntity) bool {
	switch {
	case published == nil:
		return project.PublishedVersionID != nil
	case project.PublishedVersionID == nil:
		return true
	default:
		return *project.PublishedVersionID != published.ID
	}
}

// AddDomain attaches a domain to the project. Marking it primary demotes
// the previous primary; SSL/DNS state is tracked independently of the
// publish path.
func (s *PublicationService) AddDomain(
	ctx context.Context,
	projectID uuid.UUID,
	domainName string,
	domainType entities.DomainType,
	isPrimary bool,
) (*entities.PublishedDomainEntity, error) {
	if !entities.ValidDomainName(domainName) {
		return nil, entities.ErrInvalidDomainName
	}
	switch domainType {
	case entities.DomainTypePlatformSubdomain, entities.DomainTypeCustom:
	default:
		return nil, entities.NewValidationError("unknown domain type %q", domainType)
	}

	project, err := s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return nil, entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return nil, entities.ErrProjectNotFound
	}

	existing, err := s.domainRepo.GetDomain(projectID.String(), domainName)
	if err != nil {
		return nil, entities.NewDependencyError("checking domain", err)
	}
	if existing != nil {
		return nil, entities.ErrDuplicateDomain
	}

	if domainType == entities.DomainTypeCustom {
		owned, err := s.hosting.VerifyDomain(ctx, domainName)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, entities.NewValidationError("domain %s ownership could not be verified", domainName)
		}
	}

	domain := &entities.PublishedDomainEntity{
		ProjectID:  projectID,
		DomainName: domainName,
		DomainType: domainType,
		IsPrimary:  isPrimary,
		SSLStatus:  entities.SSLStatusPending,
	}
	if err := s.domainRepo.CreateDomainByTx(domain); err != nil {
		return nil, entities.NewDependencyError("creating domain", err)
	}

	s.taskManager.AddTask(func() {
		s.refreshCertStatus(projectID, domainName)
	})

	logger.Info("domain added",
		zap.String("projectId", projectID.String()),
		zap.String("domain", domainName),
		zap.Bool("primary", isPrimary))
	return domain, nil
}

func (s *PublicationService) ListDomains(projectID uuid.UUID) ([]*entities.PublishedDomainEntity, error) {
	return s.domainRepo.ListDomains(projectID.String())
}

// refreshCertStatus polls the provider once and records the outcome on
// the domain row. Runs on the worker pool, off the request path.
func (s *PublicationService) refreshCertStatus(projectID uuid.UUID, domainName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	status, lastError, err := s.hosting.CertStatus(ctx, domainName)
	if err != nil {
		logger.Error("certificate status poll failed",
			zap.String("domain", domainName), zap.Error(err))
		lastError = err.Error()
		status = entities.SSLStatusPending
	}
	if err := s.domainRepo.UpdateSSLStatus(
		projectID.String(), domainName, status, lastError, time.Now().UTC(),
	); err != nil {
		logger.Error("failed to update domain ssl status",
			zap.String("domain", domainName), zap.Error(err))
	}
}
