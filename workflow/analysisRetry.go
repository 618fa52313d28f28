package workflow

import (
	"context"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// analysisRetryMinAge keeps the retry loop from racing a photo whose
// first analysis is still in flight.
const analysisRetryMinAge = 2 * time.Minute

// RunAnalysisRetry re-runs defect detection for photos whose analysis
// failed or never settled. Disabled unless the feature flag is on.
func RunAnalysisRetry(ctx context.Context, logger *logrus.Logger) {
	if !config.AnalysisRetryEnabled() {
		return
	}

	interval := config.AnalysisRetryInterval()
	ticker := time.NewTicker(interval)
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
			lock, err = locker.Obtain(ctx, "Lock:AnalysisRetry", interval/2, nil)
			if err == redislock.ErrNotObtained {
				continue
			}
			if err != nil {
				lock = nil
			}
		}

		retryOnce(ctx, logger)

		if lock != nil {
			_ = lock.Release(ctx)
		}
	}
}

func retryOnce(ctx context.Context, logger *logrus.Logger) {
	db := config.GetDB()
	cutoff := time.Now().Add(-analysisRetryMinAge)

	var stuck []models.Photo
	err := db.WithContext(ctx).
		Where("analysis_status IN ? AND updated_at < ?", []string{models.PhotoAnalysisPending, models.PhotoAnalysisFailed}, cutoff).
		Order("id ASC").
		Limit(20).
		Find(&stuck).Error
	if err != nil {
		logger.WithFields(logrus.Fields{
			"field": "RunAnalysisRetry",
		}).Error("stuck photo scan failed: " + err.Error())
		return
	}

	for _, photo := range stuck {
		photoCtx := utils.SetProjectIdInContext(ctx, photo.ProjectId)
		if _, err := models.AnalyzePhoto(photoCtx, photo.ID); err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "RunAnalysisRetry",
				"photo_id":   photo.ID,
				"project_id": photo.ProjectId,
			}).Error("analysis retry failed: " + err.Error())
		}
	}
}
