package services

import (
	"context"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/artifact"

	"go.uber.org/zap"
)

// DefaultRetentionWindow is how long an unreferenced object survives.
// Strictly longer than any plausible in-flight publish or rollback, which
// is what keeps GC from racing an operation that copies the reference.
const DefaultRetentionWindow = 30 * 24 * time.Hour

type ArtifactLister interface {
	List() ([]artifact.StoredObject, error)
	Delete(key string) error
}

type ReferenceChecker interface {
	ArtifactKeyReferenced(key string) (bool, error)
	NewestReferenceAge(key string) (time.Time, bool, error)
	PurgeSoftDeleted(cutoff time.Time) (int64, error)
}

// GCService deletes artifact objects that no non-tombstoned version
// references once the retention window has elapsed. Runs on a schedule,
// never on the request path; failures are logged and retried next cycle.
type GCService struct {
	store     ArtifactLister
	versions  ReferenceChecker
	retention time.Duration
	cancel    context.CancelFunc
}

func NewGCService(store ArtifactLister, versions ReferenceChecker, retention time.Duration) *GCService {
	if retention <= 0 {
		retention = DefaultRetentionWindow
	}
	return &GCService{store: store, versions: versions, retention: retention}
}

func (s *GCService) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

func (s *GCService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Sweep purges aged-out tombstoned version rows, then examines every
// stored object once. Returns the number of objects deleted.
func (s *GCService) Sweep() int {
	cutoff := time.Now().Add(-s.retention)

	if purged, err := s.versions.PurgeSoftDeleted(cutoff); err != nil {
		logger.Error("gc: purging tombstoned versions failed", zap.Error(err))
	} else if purged > 0 {
		logger.Info("gc purged tombstoned versions", zap.Int64("count", purged))
	}

	objects, err := s.store.List()
	if err != nil {
		logger.Error("gc: listing artifacts failed", zap.Error(err))
		return 0
	}
	deleted := 0
	for _, object := range objects {
		if object.ModifiedAt.After(cutoff) {
			continue
		}
		referenced, err := s.versions.ArtifactKeyReferenced(object.Key)
		if err != nil {
			logger.Error("gc: reference check failed",
				zap.String("key", object.Key), zap.Error(err))
			continue
		}
		if referenced {
			continue
		}
		// Tombstoned versions still pin the object until they age out
		// of the window; lineage fields may still point at them.
		newest, exists, err := s.versions.NewestReferenceAge(object.Key)
		if err != nil {
			logger.Error("gc: reference age check failed",
				zap.String("key", object.Key), zap.Error(err))
			continue
		}
		if exists && newest.After(cutoff) {
			continue
		}
		if err := s.store.Delete(object.Key); err != nil {
			logger.Error("gc: delete failed",
				zap.String("key", object.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		logger.Info("gc sweep finished", zap.Int("deleted", deleted))
	}
	return deleted
}
