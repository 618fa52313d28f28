package workflow

import (
	"context"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const activityCleanupInterval = time.Hour

// RunActivityCleanup periodically prunes expired activity feed entries.
// The redis lock keeps a single instance doing the work; if redis is
// unavailable the prune runs anyway since deletion is idempotent.
func RunActivityCleanup(ctx context.Context, logger *logrus.Logger) {
	ticker := time.NewTicker(activityCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		locker := config.GetRedisLock()
		var lock *redislock.Lock
		if locker != nil {
			var err error
			lock, err = locker.Obtain(ctx, "Lock:ActivityCleanup", activityCleanupInterval/2, nil)
			if err == redislock.ErrNotObtained {
				continue
			}
			if err != nil {
				lock = nil
			}
		}

		pruned, err := models.PruneActivities(ctx)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field": "RunActivityCleanup",
			}).Error("activity prune failed: " + err.Error())
		} else if pruned > 0 {
			logger.WithFields(logrus.Fields{
				"field":  "RunActivityCleanup",
				"pruned": pruned,
			}).Info("pruned expired activities")
		}

		if lock != nil {
			_ = lock.Release(ctx)
		}
	}
}
