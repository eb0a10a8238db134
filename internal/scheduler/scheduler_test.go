package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	capacityrepo "github.com/railzwaylabs/parkway/internal/capacity/repository"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/config"
	durationdomain "github.com/railzwaylabs/parkway/internal/duration/domain"
	durationrepo "github.com/railzwaylabs/parkway/internal/duration/repository"
	durationservice "github.com/railzwaylabs/parkway/internal/duration/service"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
	sessionrepo "github.com/railzwaylabs/parkway/internal/session/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now(context.Context) time.Time { return c.now }

var _ clock.Clock = fixedClock{}

type fixture struct {
	db        *gorm.DB
	ledger    capacitydomain.Ledger
	scheduler *Scheduler
	node      *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&facilitydomain.Facility{},
		&capacitydomain.Capacity{},
		&sessiondomain.Session{},
		&durationdomain.Duration{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledger := capacityrepo.NewGormLedger(db, zap.NewNop())
	s := New(Params{
		Config: config.Config{Scheduler: config.SchedulerConfig{
			Enabled:           true,
			Interval:          time.Minute,
			OrphanDurationAge: time.Hour,
		}},
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    fixedClock{now: testNow},
		Ledger:   ledger,
		Registry: prometheus.NewRegistry(),
	})
	return &fixture{db: db, ledger: ledger, scheduler: s, node: node}
}

func (f *fixture) facility(t *testing.T, total int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&facilitydomain.Facility{
		ID:        id,
		Name:      "Lot " + id.String(),
		Currency:  "EUR",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}).Error)
	require.NoError(t, f.ledger.Provision(context.Background(), id, total))
	return id
}

func (f *fixture) session(t *testing.T, facilityID snowflake.ID, vehicle string, durationID snowflake.ID) {
	t.Helper()
	require.NoError(t, f.db.Create(&sessiondomain.Session{
		ID:         f.node.Generate(),
		VehicleID:  vehicle,
		FacilityID: facilityID,
		DurationID: durationID,
		AccountID:  snowflake.ID(7),
		CreatedAt:  testNow,
	}).Error)
}

func (f *fixture) duration(t *testing.T, createdAt time.Time, ended bool) snowflake.ID {
	t.Helper()
	d := &durationdomain.Duration{
		ID:        f.node.Generate(),
		StartedAt: createdAt,
		CreatedAt: createdAt,
	}
	if ended {
		end := createdAt.Add(time.Minute)
		d.EndedAt = &end
	}
	require.NoError(t, f.db.Create(d).Error)
	return d.ID
}

func (f *fixture) orphan(t *testing.T, orphanedAt time.Time) snowflake.ID {
	t.Helper()
	d := &durationdomain.Duration{
		ID:         f.node.Generate(),
		StartedAt:  orphanedAt,
		OrphanedAt: &orphanedAt,
		CreatedAt:  orphanedAt,
	}
	require.NoError(t, f.db.Create(d).Error)
	return d.ID
}

func (f *fixture) tracker(now time.Time) durationdomain.Tracker {
	return durationservice.New(durationservice.Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		Clock: fixedClock{now: now},
		GenID: f.node,
		Repo:  durationrepo.Provide(),
	})
}

func (f *fixture) remaining(t *testing.T) []snowflake.ID {
	t.Helper()
	var ids []snowflake.ID
	require.NoError(t, f.db.Model(&durationdomain.Duration{}).Order("id").Pluck("id", &ids).Error)
	return ids
}

func TestReconcileCapacityBalanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.facility(t, 3)
	require.NoError(t, f.ledger.Reserve(ctx, id))
	f.session(t, id, "AAA111", f.duration(t, testNow, false))

	drifts, err := f.scheduler.ReconcileCapacityJob(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.scheduler.drift.WithLabelValues(id.String())))
}

func TestReconcileCapacityReportsLeakedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	healthy := f.facility(t, 2)
	leaky := f.facility(t, 2)

	require.NoError(t, f.ledger.Reserve(ctx, healthy))
	f.session(t, healthy, "AAA111", f.duration(t, testNow, false))

	// Slot taken with no session behind it.
	require.NoError(t, f.ledger.Reserve(ctx, leaky))

	drifts, err := f.scheduler.ReconcileCapacityJob(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, leaky, drifts[0].FacilityID)
	assert.Equal(t, int64(1), drifts[0].Taken)
	assert.Equal(t, int64(0), drifts[0].ActiveSessions)
	assert.False(t, drifts[0].Unbalanced())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.scheduler.drift.WithLabelValues(leaky.String())))

	snapshot, err := f.ledger.Snapshot(ctx, leaky)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Taken, "reconciliation never rewrites counters")
}

func TestReconcileSkipsFacilityWithoutCapacity(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Create(&facilitydomain.Facility{
		ID:        f.node.Generate(),
		Name:      "Half created",
		Currency:  "EUR",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}).Error)

	drifts, err := f.scheduler.ReconcileCapacityJob(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestPruneOrphanDurations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	facilityID := f.facility(t, 5)

	stale := testNow.Add(-2 * time.Hour)
	orphan := f.orphan(t, stale)
	recentOrphan := f.orphan(t, testNow.Add(-time.Minute))
	unflagged := f.duration(t, stale, false)
	referenced := f.duration(t, stale, false)
	f.session(t, facilityID, "BBB222", referenced)
	closed := f.duration(t, stale, true)

	deleted, err := f.scheduler.PruneOrphanDurationsJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.scheduler.pruned))

	remaining := f.remaining(t)
	assert.ElementsMatch(t, []snowflake.ID{recentOrphan, unflagged, referenced, closed}, remaining)
	assert.NotContains(t, remaining, orphan)
}

func TestPruneSparesDurationOfLeaveInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	facilityID := f.facility(t, 2)
	registry := sessionrepo.NewRegistry(f.db)

	durationID := f.duration(t, testNow.Add(-90*time.Minute), false)
	f.session(t, facilityID, "ABC123", durationID)

	// Leave has taken the session but not yet closed the duration.
	taken, err := registry.TakeActive(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, durationID, taken.DurationID)

	deleted, err := f.scheduler.PruneOrphanDurationsJob(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	closed, err := f.tracker(testNow).Close(ctx, durationID)
	require.NoError(t, err)
	minutes, err := f.tracker(testNow).ElapsedMinutes(*closed)
	require.NoError(t, err)
	assert.Equal(t, 90.0, minutes)
}

func TestPruneRemovesDurationLeftByFailedDiscard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracker := f.tracker(testNow)

	d, err := tracker.Open(ctx)
	require.NoError(t, err)

	const failDelete = "test:fail_duration_delete"
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register(failDelete, func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}))
	require.Error(t, tracker.Discard(ctx, d.ID))
	require.NoError(t, f.db.Callback().Delete().Remove(failDelete))

	var flagged durationdomain.Duration
	require.NoError(t, f.db.First(&flagged, "id = ?", d.ID).Error)
	require.NotNil(t, flagged.OrphanedAt)

	deleted, err := f.scheduler.PruneOrphanDurationsJob(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted, "kept until orphan_duration_age has passed")

	f.scheduler.clock = fixedClock{now: testNow.Add(2 * time.Hour)}
	deleted, err = f.scheduler.PruneOrphanDurationsJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.NotContains(t, f.remaining(t), d.ID)
}

func TestPruneDisabledWithZeroAge(t *testing.T) {
	f := newFixture(t)
	f.scheduler.cfg.OrphanDurationAge = 0
	f.duration(t, testNow.Add(-48*time.Hour), false)

	deleted, err := f.scheduler.PruneOrphanDurationsJob(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRunOnceCountsFailures(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	f.scheduler.RunOnce(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.scheduler.jobFailures.WithLabelValues("reconcile_capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.scheduler.jobFailures.WithLabelValues("prune_orphan_durations")))
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.scheduler.RunForever(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
