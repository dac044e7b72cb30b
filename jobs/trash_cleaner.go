package jobs

import (
	"context"
	"fmt"
	"time"

	"studentfiles/models"
	"studentfiles/services"
	"studentfiles/utils"
)

type purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (*models.PurgeReport, error)
}

// TrashCleaner periodically reclaims tombstoned files.
type TrashCleaner struct {
	purger   purger
	interval time.Duration
	timeout  time.Duration
}

func NewTrashCleaner(trashService *services.TrashService, interval time.Duration) *TrashCleaner {
	return &TrashCleaner{
		purger:   trashService,
		interval: interval,
		timeout:  30 * time.Minute,
	}
}

// Start runs a cleanup immediately and then on every tick until ctx is done.
// A non-positive interval disables the job.
func (tc *TrashCleaner) Start(ctx context.Context) {
	if tc.interval <= 0 {
		utils.LogInfo("[TrashCleaner] Disabled")
		return
	}
	utils.LogInfo(fmt.Sprintf("[TrashCleaner] Starting, interval %s", tc.interval))

	go func() {
		tc.RunOnce(ctx)

		ticker := time.NewTicker(tc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				utils.LogInfo("[TrashCleaner] Stopped")
				return
			case <-ticker.C:
				tc.RunOnce(ctx)
			}
		}
	}()
}

func (tc *TrashCleaner) RunOnce(ctx context.Context) *models.PurgeReport {
	ctx, cancel := context.WithTimeout(ctx, tc.timeout)
	defer cancel()

	report, err := tc.purger.PurgeExpired(ctx, time.Now())
	if err != nil {
		utils.LogError("[TrashCleaner] Cleanup failed", err)
		return nil
	}
	utils.LogInfo(fmt.Sprintf("[TrashCleaner] Cleanup completed. Scanned: %d, purged: %d, failed: %d",
		report.Scanned, report.Purged, report.Failed))
	return report
}
