package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"go.uber.org/zap"
)

// acquireSyncLock takes the filesystem-level lock guarding a project
// working directory. A lock file older than stale belongs to a crashed
// worker and is stolen. Returns the release function.
func acquireSyncLock(path string, stale time.Duration) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating sync lock: %w", err)
		}
		info, statErr := os.Stat(path)
		if os.IsNotExist(statErr) {
			// holder released between our attempts
			continue
		}
		if statErr != nil {
			return nil, fmt.Errorf("inspecting sync lock: %w", statErr)
		}
		if time.Since(info.ModTime()) > stale {
			logger.Warn("stealing stale sync lock", zap.String("path", path))
			os.Remove(path)
			continue
		}
		return nil, entities.NewConflictError("working directory sync already in progress")
	}
	return nil, entities.NewConflictError("working directory sync already in progress")
}
