package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/internal/utils"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/events"

	"go.uber.org/zap"
)

type MarkerRepository interface {
	UpsertMarker(marker *entities.WorkingDirectoryMarker) error
	GetMarker(projectID string) (*entities.WorkingDirectoryMarker, error)
}

type AuditRepository interface {
	CreateEntry(entry *entities.AuditEntry) error
}

type ArtifactReader interface {
	Get(key string) (io.ReadCloser, error)
	Verify(key string, checksum string) error
}

type GitRunner interface {
	EnsureRepository(ctx context.Context, dir string) error
	HasLocalChanges(ctx context.Context, dir string) (bool, error)
	Stash(ctx context.Context, dir string, message string) error
	CommitAll(ctx context.Context, dir string, message string) error
	Tag(ctx context.Context, dir string, name string) error
}

// syncLockStaleAge is how old a sync lock file must be before a new
// worker may steal it from a crashed predecessor.
const syncLockStaleAge = 5 * time.Minute

// SyncService materializes an artifact onto the project's working copy
// and finishes (or reverts) the rollback the job belongs to. It is the
// handler for JobTypeRollbackSync on the shared worker pool.
type SyncService struct {
	projectRepo   ProjectRepository
	versionRepo   VersionRepository
	markerRepo    MarkerRepository
	auditRepo     AuditRepository
	artifacts     ArtifactReader
	git           GitRunner
	eventBus      EventBus
	workspaceRoot string
}

func NewSyncService(
	projectRepo ProjectRepository,
	versionRepo VersionRepository,
	markerRepo MarkerRepository,
	auditRepo AuditRepository,
	artifacts ArtifactReader,
	git GitRunner,
	eventBus EventBus,
	workspaceRoot string,
) *SyncService {
	return &SyncService{
		projectRepo:   projectRepo,
		versionRepo:   versionRepo,
		markerRepo:    markerRepo,
		auditRepo:     auditRepo,
		artifacts:     artifacts,
		git:           git,
		eventBus:      eventBus,
		workspaceRoot: workspaceRoot,
	}
}

// Handle executes one rollback-sync job. A nil return completes the
// rollback; a returned dependency error lets the dispatcher retry; any
// final failure reverts the project to its pre-rollback snapshot.
func (s *SyncService) Handle(ctx context.Context, job *entities.SyncJobEntity) error {
	start := time.Now()

	var payload entities.RollbackSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return entities.NewValidationError("malformed sync job payload: %v", err)
	}

	filesWritten, err := s.run(ctx, &payload)
	elapsed := time.Since(start).Milliseconds()

	if err == nil {
		if err := s.finish(&payload); err != nil {
			s.audit(&payload, filesWritten, elapsed, entities.AuditResultFailure, err.Error())
			return err
		}
		s.audit(&payload, filesWritten, elapsed, entities.AuditResultSuccess, "")
		s.eventBus.Publish(events.Event{
			ProjectID: payload.ProjectID,
			Type:      events.TypeRollbackSucceeded,
			Data:      map[string]string{"versionId": payload.NewVersionID.String()},
		})
		logger.Info("rollback sync completed",
			zap.String("projectId", payload.ProjectID.String()),
			zap.String("versionId", payload.NewVersionID.String()),
			zap.Int("filesWritten", filesWritten),
			zap.Int64("elapsedMs", elapsed))
		return nil
	}

	s.audit(&payload, filesWritten, elapsed, entities.AuditResultFailure, err.Error())
	if entities.JobFailureIsFinal(job.Attempts, err) {
		s.recover(&payload, err)
	}
	return err
}

// run does the disk work and returns the number of files written. The
// version record is still valid if this fails; only the project state is
// reverted.
func (s *SyncService) run(ctx context.Context, payload *entities.RollbackSyncPayload) (int, error) {
	if payload.SkipSync {
		return 0, nil
	}

	version, err := s.versionRepo.GetVersionByID(payload.NewVersionID.String())
	if err != nil {
		return 0, entities.NewDependencyError("loading rollback version", err)
	}
	if version == nil {
		return 0, entities.NewValidationError("rollback version %s vanished", payload.NewVersionID)
	}

	release, err := acquireSyncLock(
		utils.GetSyncLockPath(s.workspaceRoot, payload.ProjectID), syncLockStaleAge)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.artifacts.Verify(version.Artifact.StorageKey, version.Artifact.Checksum); err != nil {
		return 0, err
	}

	workdir := utils.GetWorkingDirectory(s.workspaceRoot, payload.ProjectID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return 0, fmt.Errorf("creating working directory: %w", err)
	}

	// Full traversal scan before the first byte hits disk.
	scan, err := s.artifacts.Get(version.Artifact.StorageKey)
	if err != nil {
		return 0, err
	}
	scanErr := scanArchive(scan, workdir)
	scan.Close()
	if scanErr != nil {
		return 0, scanErr
	}

	if err := s.git.EnsureRepository(ctx, workdir); err != nil {
		return 0, entities.NewDependencyError("preparing git repository", err)
	}
	dirty, err := s.git.HasLocalChanges(ctx, workdir)
	if err != nil {
		return 0, entities.NewDependencyError("inspecting working tree", err)
	}
	if dirty {
		// Uncommitted user edits are stashed, not discarded.
		message := fmt.Sprintf("pre-sync %s", payload.NewVersionID)
		if err := s.git.Stash(ctx, workdir, message); err != nil {
			return 0, entities.NewDependencyError("stashing local changes", err)
		}
	}

	content, err := s.artifacts.Get(version.Artifact.StorageKey)
	if err != nil {
		return 0, err
	}
	filesWritten, extractErr := extractArchive(content, workdir)
	content.Close()
	if extractErr != nil {
		return filesWritten, extractErr
	}

	commitMessage := fmt.Sprintf("Sync %s (%s)", version.VersionName, version.ID)
	if err := s.git.CommitAll(ctx, workdir, commitMessage); err != nil {
		return filesWritten, entities.NewDependencyError("committing synced tree", err)
	}
	if err := s.git.Tag(ctx, workdir, version.ID.String()); err != nil {
		return filesWritten, entities.NewDependencyError("tagging synced tree", err)
	}

	// The marker moves only after the commit is durable.
	if err := s.markerRepo.UpsertMarker(&entities.WorkingDirectoryMarker{
		ProjectID:        payload.ProjectID,
		VersionID:        version.ID,
		ArtifactChecksum: version.Artifact.Checksum,
		ExtractedAt:      time.Now().UTC(),
	}); err != nil {
		return filesWritten, entities.NewDependencyError("updating working directory marker", err)
	}

	return filesWritten, nil
}

// finish moves the project out of rolling_back on success.
func (s *SyncService) finish(payload *entities.RollbackSyncPayload) error {
	project, err := s.projectRepo.GetProjectByID(payload.ProjectID.String())
	if err != nil {
		return entities.NewDependencyError("loading project", err)
	}
	if project == nil {
		return entities.NewValidationError("project %s vanished", payload.ProjectID)
	}
	if !project.Status.CanTransitionTo(entities.ProjectStatusDeployed) {
		return entities.NewValidationError(
			"project %s in state %s cannot complete rollback", payload.ProjectID, project.Status)
	}
	if err := s.projectRepo.UpdateStatus(payload.ProjectID.String(), entities.ProjectStatusDeployed); err != nil {
		return entities.NewDependencyError("finalizing project status", err)
	}
	return nil
}

// recover is the terminal failure path: the project passes through
// rollback_failed (observable on the event stream) and is then restored
// byte for byte to the snapshot taken before the rollback began. The
// rollback version record is kept; it is still a valid unpublished
// artifact reference.
func (s *SyncService) recover(payload *entities.RollbackSyncPayload, cause error) {
	if err := s.projectRepo.UpdateStatus(
		payload.ProjectID.String(), entities.ProjectStatusRollbackFailed,
	); err != nil {
		logger.Error("failed to mark rollback failed", zap.Error(err))
	}
	s.eventBus.Publish(events.Event{
		ProjectID: payload.ProjectID,
		Type:      events.TypeRollbackFailed,
		Data: map[string]string{
			"versionId": payload.NewVersionID.String(),
			"error":     cause.Error(),
		},
	})
	if err := s.projectRepo.RestoreSnapshot(payload.ProjectID.String(), payload.Snapshot); err != nil {
		logger.Error("failed to restore project snapshot",
			zap.String("projectId", payload.ProjectID.String()), zap.Error(err))
		return
	}
	logger.Info("project restored to pre-rollback state",
		zap.String("projectId", payload.ProjectID.String()),
		zap.String("status", string(payload.Snapshot.Status)))
}

func (s *SyncService) audit(
	payload *entities.RollbackSyncPayload,
	filesWritten int,
	elapsedMs int64,
	result entities.AuditResult,
	detail string,
) {
	versionID := payload.NewVersionID
	entry := &entities.AuditEntry{
		ProjectID:    payload.ProjectID,
		UserID:       payload.UserID,
		VersionID:    &versionID,
		Action:       "rollback_sync",
		FilesWritten: filesWritten,
		ElapsedMs:    elapsedMs,
		Result:       result,
		Detail:       detail,
	}
	if err := s.auditRepo.CreateEntry(entry); err != nil {
		logger.Error("failed to write audit entry",
			zap.String("projectId", payload.ProjectID.String()), zap.Error(err))
	}
}
