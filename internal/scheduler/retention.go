package scheduler

import (
	"context"

	durationdomain "github.com/railzwaylabs/parkway/internal/duration/domain"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
	"go.uber.org/zap"
)

// PruneOrphanDurationsJob removes durations flagged as orphaned by a rolled
// back Park whose delete did not go through. Unflagged open durations are
// never touched: a Leave in progress has already removed its session but not
// yet closed the duration.
func (s *Scheduler) PruneOrphanDurationsJob(ctx context.Context) (int64, error) {
	age := s.cfg.OrphanDurationAge
	if age <= 0 {
		s.log.Debug("orphan duration pruning disabled")
		return 0, nil
	}

	cutoff := s.clock.Now(ctx).Add(-age)
	referenced := s.db.Model(&sessiondomain.Session{}).Select("duration_id")

	result := s.db.WithContext(ctx).
		Where("orphaned_at IS NOT NULL AND orphaned_at < ? AND ended_at IS NULL", cutoff).
		Where("id NOT IN (?)", referenced).
		Delete(&durationdomain.Duration{})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		s.pruned.Add(float64(result.RowsAffected))
		s.log.Info("orphan durations pruned",
			zap.Int64("deleted", result.RowsAffected),
			zap.Time("cutoff", cutoff),
		)
	}
	return result.RowsAffected, nil
}
