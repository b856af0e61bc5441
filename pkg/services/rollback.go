package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type JobQueue interface {
	EnqueueJob(job *entities.SyncJobEntity) error
}

// PublishInfo tells the caller explicitly that rollback never
// auto-publishes: going live is a separate publish call.
type PublishInfo struct {
	IsPublished bool `json:"isPublished"`
	CanPublish  bool `json:"canPublish"`
}

type RollbackResult struct {
	RollbackVersionID uuid.UUID   `json:"rollbackVersionId"`
	PreviewURL        string      `json:"previewUrl"`
	Status            string      `json:"status"`
	PublishInfo       PublishInfo `json:"publishInfo"`
	Replayed          bool        `json:"-"`
}

type RollbackService struct {
	projectRepo ProjectRepository
	versionRepo VersionRepository
	jobQueue    JobQueue
	locker      Locker
	idempotency IdempotencyCache
	artifacts   ArtifactVerifier
	eventBus    EventBus
	lockTTL     time.Duration
}

func NewRollbackService(
	projectRepo ProjectRepository,
	versionRepo VersionRepository,
	jobQueue JobQueue,
	locker Locker,
	idempotency IdempotencyCache,
	artifacts ArtifactVerifier,
	eventBus EventBus,
	lockTTL time.Duration,
) *RollbackService {
	return &RollbackService{
		projectRepo: projectRepo,
		versionRepo: versionRepo,
		jobQueue:    jobQueue,
		locker:      locker,
		idempotency: idempotency,
		artifacts:   artifacts,
		eventBus:    eventBus,
		lockTTL:     lockTTL,
	}
}

// RollbackTo creates a new version reusing the target's artifact by
// reference, flips the project into rolling_back, and schedules the slow
// working-directory sync in the background. The lock covers only the
// synchronous decision-making, never the background work.
func (s *RollbackService) RollbackTo(
	ctx context.Context,
	projectID uuid.UUID,
	targetVersionID uuid.UUID,
	userID uuid.UUID,
	skipWorkingDirectorySync bool,
	idempotencyKey string,
) (*RollbackResult, error) {
	if idempotencyKey != "" {
		if cached, found, err := s.idempotency.Lookup(ctx, idempotencyKey); err != nil {
			logger.Error("idempotency lookup failed", zap.Error(err))
		} else if found {
			var result RollbackResult
			if err := json.Unmarshal(cached, &result); err == nil {
				result.Replayed = true
				return &result, nil
			}
		}
	}

	project, target, err := s.validateRollbackTarget(projectID, targetVersionID)
	if err != nil {
		return nil, err
	}

	token, ok, err := s.locker.Acquire(ctx, projectID.String(), s.lockTTL)
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

	// The project state may have moved between validation and lock
	// acquisition; re-read under the lock before minting anything.
	project, err = s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return nil, entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return nil, entities.ErrProjectNotFound
	}
	if !project.Status.CanTransitionTo(entities.ProjectStatusRollingBack) {
		return nil, entities.ErrProjectNotRollbackable
	}

	// Everything the failure path restores is captured before the first
	// mutation.
	snapshot := project.Snapshot()

	newVersionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating version id: %w", err)
	}
	newVersion := &entities.VersionEntity{
		ID:                      newVersionID,
		ProjectID:               projectID,
		VersionName:             rollbackVersionName(target.VersionName, newVersionID),
		Artifact:                target.Artifact,
		EndpointURL:             target.EndpointURL,
		RollbackSourceVersionID: project.PublishedVersionID,
		RollbackTargetVersionID: &target.ID,
		UserComment:             fmt.Sprintf("rollback to %s", target.VersionName),
	}
	if err := s.versionRepo.CreateVersion(newVersion); err != nil {
		return nil, entities.NewDependencyError("creating rollback version", err)
	}

	previewURL := project.PreviewURL
	if target.EndpointURL != "" {
		// The target is already deployed somewhere stable; show it
		// without waiting for the sync.
		previewURL = target.EndpointURL
	}
	if err := s.projectRepo.UpdateStatusAndPreview(
		projectID.String(), entities.ProjectStatusRollingBack, previewURL,
	); err != nil {
		return nil, entities.NewDependencyError("updating project status", err)
	}

	payload := entities.RollbackSyncPayload{
		ProjectID:       projectID,
		NewVersionID:    newVersionID,
		TargetVersionID: target.ID,
		UserID:          userID,
		SkipSync:        skipWorkingDirectorySync,
		Snapshot:        snapshot,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding job payload: %w", err)
	}
	job := &entities.SyncJobEntity{
		ID:        uuid.New(),
		ProjectID: projectID,
		JobType:   entities.JobTypeRollbackSync,
		Payload:   datatypes.JSON(payloadJSON),
	}
	if err := s.jobQueue.EnqueueJob(job); err != nil {
		// Without the background job the rollback can never finish;
		// undo the status flip instead of stranding the project.
		if restoreErr := s.projectRepo.RestoreSnapshot(projectID.String(), snapshot); restoreErr != nil {
			logger.Error("failed to restore project after enqueue failure", zap.Error(restoreErr))
		}
		return nil, entities.NewDependencyError("enqueueing sync job", err)
	}

	result := &RollbackResult{
		RollbackVersionID: newVersionID,
		PreviewURL:        previewURL,
		Status:            string(entities.ProjectStatusRollingBack),
		PublishInfo:       PublishInfo{IsPublished: false, CanPublish: true},
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
		Type:      events.TypeRollbackStarted,
		Data: map[string]string{
			"rollbackVersionId": newVersionID.String(),
			"targetVersionId":   target.ID.String(),
		},
	})
	logger.Info("rollback started",
		zap.String("projectId", projectID.String()),
		zap.String("targetVersionId", target.ID.String()),
		zap.String("rollbackVersionId", newVersionID.String()),
		zap.Bool("skipSync", skipWorkingDirectorySync))
	return result, nil
}

func (s *RollbackService) validateRollbackTarget(
	projectID uuid.UUID,
	targetVersionID uuid.UUID,
) (*entities.ProjectEntity, *entities.VersionEntity, error) {
	project, err := s.projectRepo.GetProjectByID(projectID.String())
	if err != nil {
		return nil, nil, entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return nil, nil, entities.ErrProjectNotFound
	}
	if !project.Status.CanTransitionTo(entities.ProjectStatusRollingBack) {
		return nil, nil, entities.ErrProjectNotRollbackable
	}
	target, err := s.versionRepo.GetVersionByID(targetVersionID.String())
	if err != nil {
		return nil, nil, entities.NewDependencyError("loading target version", err)
	}
	if target == nil {
		return nil, nil, entities.ErrVersionNotFound
	}
	if target.ProjectID != projectID {
		return nil, nil, entities.ErrVersionWrongProject
	}
	// Rolling back to a tombstoned version is a hard validation error,
	// never a silent fallback.
	if target.IsSoftDeleted() {
		return nil, nil, entities.ErrVersionSoftDeleted
	}
	if target.Artifact.Empty() {
		return nil, nil, entities.ErrVersionNoArtifact
	}
	if err := s.artifacts.Verify(target.Artifact.StorageKey, target.Artifact.Checksum); err != nil {
		return nil, nil, err
	}
	return project, target, nil
}

// rollbackVersionName derives a fresh, pattern-conforming name from the
// target: the target's numeric core plus a rollback label carrying a short
// unique suffix.
func rollbackVersionName(targetName string, newID uuid.UUID) string {
	core := targetName
	if idx := strings.IndexByte(core, '-'); idx > 0 {
		core = core[:idx]
	}
	suffix := strings.ReplaceAll(newID.String(), "-", "")[:8]
	return fmt.Sprintf("%s-rollback.%s", core, suffix)
}
