package scheduler

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
	"go.uber.org/zap"
)

// Drift describes a facility whose counters disagree with the registry.
type Drift struct {
	FacilityID     snowflake.ID
	Total          int64
	Available      int64
	Taken          int64
	ActiveSessions int64
}

func (d Drift) Unbalanced() bool {
	return d.Available+d.Taken != d.Total
}

// ReconcileCapacityJob compares each facility's taken counter with the
// number of active sessions. It only reports: a Park in flight holds a slot
// before its session exists, so a small transient difference is expected.
func (s *Scheduler) ReconcileCapacityJob(ctx context.Context) ([]Drift, error) {
	var facilityIDs []snowflake.ID
	if err := s.db.WithContext(ctx).
		Model(&facilitydomain.Facility{}).
		Order("id").
		Pluck("id", &facilityIDs).Error; err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, id := range facilityIDs {
		snapshot, err := s.ledger.Snapshot(ctx, id)
		if errors.Is(err, capacitydomain.ErrFacilityNotFound) {
			continue
		}
		if err != nil {
			return drifts, err
		}

		var active int64
		if err := s.db.WithContext(ctx).
			Model(&sessiondomain.Session{}).
			Where("facility_id = ?", id).
			Count(&active).Error; err != nil {
			return drifts, err
		}

		d := Drift{
			FacilityID:     id,
			Total:          snapshot.Total,
			Available:      snapshot.Available,
			Taken:          snapshot.Taken,
			ActiveSessions: active,
		}
		s.drift.WithLabelValues(id.String()).Set(float64(d.Taken - d.ActiveSessions))

		if d.Taken == d.ActiveSessions && !d.Unbalanced() {
			continue
		}
		drifts = append(drifts, d)
		s.log.Warn("capacity drift",
			zap.String("facility_id", id.String()),
			zap.Int64("total", d.Total),
			zap.Int64("available", d.Available),
			zap.Int64("taken", d.Taken),
			zap.Int64("active_sessions", d.ActiveSessions),
			zap.Bool("unbalanced", d.Unbalanced()),
		)
	}
	return drifts, nil
}
