package utils

import (
	"path"

	"github.com/google/uuid"
)

// GetWorkingDirectory returns the on-disk working copy location for a
// project under the workspace root.
func GetWorkingDirectory(workspaceRoot string, projectID uuid.UUID) string {
	return path.Join(workspaceRoot, "projects", projectID.String(), "working")
}

// GetSyncLockPath returns the filesystem lock file guarding a project's
// working directory. Distinct from the publication lock: this one is
// scoped to disk mutation only.
func GetSyncLockPath(workspaceRoot string, projectID uuid.UUID) string {
	return path.Join(workspaceRoot, "projects", projectID.String(), "sync.lock")
}
