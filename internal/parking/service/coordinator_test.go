package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	accountdomain "github.com/railzwaylabs/parkway/internal/account/domain"
	accountrepo "github.com/railzwaylabs/parkway/internal/account/repository"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	capacityrepo "github.com/railzwaylabs/parkway/internal/capacity/repository"
	"github.com/railzwaylabs/parkway/internal/config"
	durationdomain "github.com/railzwaylabs/parkway/internal/duration/domain"
	durationrepo "github.com/railzwaylabs/parkway/internal/duration/repository"
	durationservice "github.com/railzwaylabs/parkway/internal/duration/service"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	facilityrepo "github.com/railzwaylabs/parkway/internal/facility/repository"
	facilityservice "github.com/railzwaylabs/parkway/internal/facility/service"
	"github.com/railzwaylabs/parkway/internal/parking/domain"
	paymentdomain "github.com/railzwaylabs/parkway/internal/payment/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
	pricingservice "github.com/railzwaylabs/parkway/internal/pricing/service"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
	sessionrepo "github.com/railzwaylabs/parkway/internal/session/repository"
	transactiondomain "github.com/railzwaylabs/parkway/internal/transaction/domain"
	transactionrepo "github.com/railzwaylabs/parkway/internal/transaction/repository"
	transactionservice "github.com/railzwaylabs/parkway/internal/transaction/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var standardTiers = pricingdomain.RateTable{
	{MinutesThreshold: 60, Price: 5},
	{MinutesThreshold: 120, Price: 10},
	{MinutesThreshold: 1440, Price: 20},
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now(context.Context) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu       sync.Mutex
	payments []*paymentdomain.Payment
	err      error
}

func (s *recordingSink) Publish(_ context.Context, p *paymentdomain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payments = append(s.payments, p)
	return nil
}

type harness struct {
	db         *gorm.DB
	clock      *manualClock
	node       *snowflake.Node
	ledger     capacitydomain.Ledger
	registry   sessiondomain.Registry
	tracker    durationdomain.Tracker
	facilities facilitydomain.Service
	directory  accountdomain.Directory
	recorder   transactiondomain.Recorder
	sink       *recordingSink
	metrics    *Metrics
	cfg        config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Vehicle{},
		&capacitydomain.Capacity{},
		&sessiondomain.Session{},
		&durationdomain.Duration{},
		&facilitydomain.Facility{},
		&facilitydomain.RateTier{},
		&paymentdomain.Payment{},
		&transactiondomain.TransactionRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Parking.MaxConflictRetries = 3
	cfg.Parking.OperationTimeout = 5 * time.Second
	cfg.Parking.DefaultCurrency = "EUR"

	clk := &manualClock{now: time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC)}
	log := zap.NewNop()
	ledger := capacityrepo.NewGormLedger(db, log)
	engine := pricingservice.New()

	return &harness{
		db:       db,
		clock:    clk,
		node:     node,
		ledger:   ledger,
		registry: sessionrepo.NewRegistry(db),
		tracker: durationservice.New(durationservice.Params{
			DB: db, Log: log, Clock: clk, GenID: node, Repo: durationrepo.Provide(),
		}),
		facilities: facilityservice.New(facilityservice.Params{
			DB: db, Log: log, Config: cfg, Clock: clk, GenID: node,
			Repo: facilityrepo.Provide(), Ledger: ledger, Engine: engine,
		}),
		directory: accountrepo.NewDirectory(db),
		recorder: transactionservice.New(transactionservice.Params{
			DB: db, Log: log, Clock: clk, Repo: transactionrepo.Provide(),
		}),
		sink:    &recordingSink{},
		metrics: NewMetrics(prometheus.NewRegistry()),
		cfg:     cfg,
	}
}

func (h *harness) params() Params {
	return Params{
		Log:        zap.NewNop(),
		Config:     h.cfg,
		Clock:      h.clock,
		GenID:      h.node,
		Metrics:    h.metrics,
		Directory:  h.directory,
		Registry:   h.registry,
		Ledger:     h.ledger,
		Tracker:    h.tracker,
		Engine:     pricingservice.New(),
		Facilities: h.facilities,
		Recorder:   h.recorder,
		Sink:       h.sink,
	}
}

func (h *harness) service() domain.Service {
	return New(h.params())
}

func (h *harness) facility(t *testing.T, capacity int64) snowflake.ID {
	t.Helper()

	f, err := h.facilities.Create(context.Background(), facilitydomain.CreateRequest{
		Name:     "F1",
		Capacity: capacity,
		Tiers:    standardTiers,
	})
	require.NoError(t, err)
	return f.ID
}

func (h *harness) vehicle(t *testing.T, plate string) {
	t.Helper()
	require.NoError(t, h.directory.Register(context.Background(), plate, h.node.Generate()))
}

func (h *harness) capacity(t *testing.T, facilityID snowflake.ID) *capacitydomain.Capacity {
	t.Helper()

	c, err := h.ledger.Snapshot(context.Background(), facilityID)
	require.NoError(t, err)
	assert.Equal(t, c.Total, c.Available+c.Taken, "available + taken must equal total")
	return c
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()

	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func TestParkAndLeaveEndToEnd(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	f1 := h.facility(t, 1)
	h.vehicle(t, "ABC123")

	parked, err := svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "abc123"})
	require.NoError(t, err)
	assert.NotZero(t, parked.SessionID)
	assert.Equal(t, "ABC123", parked.VehicleID)

	c := h.capacity(t, f1)
	assert.Equal(t, int64(0), c.Available)
	assert.Equal(t, int64(1), c.Taken)

	h.clock.Advance(90 * time.Minute)

	left, err := svc.Leave(ctx, domain.LeaveRequest{Vehicle: "ABC123"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), left.Amount)
	assert.Equal(t, "EUR", left.Currency)
	assert.InDelta(t, 90.0, left.ElapsedMinutes, 1e-9)

	c = h.capacity(t, f1)
	assert.Equal(t, int64(1), c.Available)
	assert.Equal(t, int64(0), c.Taken)

	rec, err := h.recorder.Get(ctx, left.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, parked.SessionID, rec.SessionID)
	assert.Equal(t, left.PaymentID, rec.PaymentID)
	assert.Equal(t, f1, rec.FacilityID)

	require.Len(t, h.sink.payments, 1)
	assert.Equal(t, paymentdomain.MethodAccount, h.sink.payments[0].Method)
	assert.Equal(t, int64(10), h.sink.payments[0].Amount)

	assert.Zero(t, h.count(t, &sessiondomain.Session{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.operations.WithLabelValues("park", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.operations.WithLabelValues("leave", "ok")))

	// The vehicle can park again once it has left.
	_, err = svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	require.NoError(t, err)
}

func TestParkRejections(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	f1 := h.facility(t, 2)
	h.vehicle(t, "ABC123")

	_, err := svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "NOPE"})
	assert.ErrorIs(t, err, domain.ErrUnknownVehicle)

	_, err = svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidVehicle)

	_, err = svc.Park(ctx, domain.ParkRequest{FacilityID: snowflake.ID(1), Vehicle: "ABC123"})
	assert.ErrorIs(t, err, domain.ErrFacilityNotFound)

	_, err = svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	require.NoError(t, err)

	_, err = svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	c := h.capacity(t, f1)
	assert.Equal(t, int64(1), c.Taken)
	assert.Equal(t, int64(1), h.count(t, &durationdomain.Duration{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.operations.WithLabelValues("park", "already_active")))
}

func TestParkCapacityExhausted(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	f1 := h.facility(t, 1)
	h.vehicle(t, "AAA111")
	h.vehicle(t, "BBB222")

	_, err := svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "AAA111"})
	require.NoError(t, err)

	_, err = svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "BBB222"})
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)
	assert.Equal(t, int64(1), h.count(t, &durationdomain.Duration{}))
}

func TestConcurrentParkSameVehicle(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	f1 := h.facility(t, 10)
	h.vehicle(t, "ABC123")

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrAlreadyActive):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, rejected)

	c := h.capacity(t, f1)
	assert.Equal(t, int64(9), c.Available)
	assert.Equal(t, int64(1), c.Taken)
	assert.Equal(t, int64(1), h.count(t, &sessiondomain.Session{}))
	assert.Equal(t, int64(1), h.count(t, &durationdomain.Duration{}))
}

func TestConcurrentParkLastSlot(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	f1 := h.facility(t, 1)
	plates := []string{"V01", "V02", "V03", "V04", "V05", "V06", "V07", "V08"}
	for _, plate := range plates {
		h.vehicle(t, plate)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		success   int
		exhausted int
	)
	for _, plate := range plates {
		wg.Add(1)
		go func(plate string) {
			defer wg.Done()
			_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: f1, Vehicle: plate})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrCapacityExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(plate)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, len(plates)-1, exhausted)

	c := h.capacity(t, f1)
	assert.Equal(t, int64(0), c.Available)
	assert.Equal(t, int64(1), c.Taken)
}

type losingRegistry struct {
	sessiondomain.Registry
	err error
}

func (r losingRegistry) TryOpen(context.Context, *sessiondomain.Session) error {
	return r.err
}

func TestParkRollsBackWhenSessionCreationFails(t *testing.T) {
	for _, tc := range []struct {
		name    string
		openErr error
		want    error
	}{
		{name: "race lost", openErr: sessiondomain.ErrAlreadyActive, want: domain.ErrAlreadyActive},
		{name: "store down", openErr: errors.New("connection reset"), want: domain.ErrPersistence},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			f1 := h.facility(t, 3)
			h.vehicle(t, "ABC123")

			p := h.params()
			p.Registry = losingRegistry{Registry: h.registry, err: tc.openErr}
			svc := New(p)

			before := h.capacity(t, f1)
			_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
			assert.ErrorIs(t, err, tc.want)

			after := h.capacity(t, f1)
			assert.Equal(t, before.Available, after.Available)
			assert.Equal(t, before.Taken, after.Taken)
			assert.Zero(t, h.count(t, &durationdomain.Duration{}))
			assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.compensations.WithLabelValues("capacity.release", "ok")))
		})
	}
}

type ledgerMock struct {
	mock.Mock
}

func (m *ledgerMock) Provision(ctx context.Context, facilityID snowflake.ID, total int64) error {
	return m.Called(ctx, facilityID, total).Error(0)
}

func (m *ledgerMock) Reserve(ctx context.Context, facilityID snowflake.ID) error {
	return m.Called(ctx, facilityID).Error(0)
}

func (m *ledgerMock) Release(ctx context.Context, facilityID snowflake.ID) error {
	return m.Called(ctx, facilityID).Error(0)
}

func (m *ledgerMock) Snapshot(ctx context.Context, facilityID snowflake.ID) (*capacitydomain.Capacity, error) {
	args := m.Called(ctx, facilityID)
	c, _ := args.Get(0).(*capacitydomain.Capacity)
	return c, args.Error(1)
}

func TestParkRetriesConflicts(t *testing.T) {
	h := newHarness(t)
	h.vehicle(t, "ABC123")
	facilityID := snowflake.ID(77)

	ledger := new(ledgerMock)
	ledger.On("Reserve", mock.Anything, facilityID).Return(capacitydomain.ErrConflict).Twice()
	ledger.On("Reserve", mock.Anything, facilityID).Return(nil).Once()

	p := h.params()
	p.Ledger = ledger
	svc := New(p)

	_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: facilityID, Vehicle: "ABC123"})
	require.NoError(t, err)
	ledger.AssertNumberOfCalls(t, "Reserve", 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.conflicts.WithLabelValues("capacity.reserve")))
}

func TestParkEscalatesPersistentConflicts(t *testing.T) {
	h := newHarness(t)
	h.vehicle(t, "ABC123")
	facilityID := snowflake.ID(77)

	ledger := new(ledgerMock)
	ledger.On("Reserve", mock.Anything, facilityID).Return(capacitydomain.ErrConflict)

	p := h.params()
	p.Ledger = ledger
	svc := New(p)

	_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: facilityID, Vehicle: "ABC123"})
	require.Error(t, err)

	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "capacity.reserve", pe.Op)
	assert.True(t, pe.Retryable())
	ledger.AssertNumberOfCalls(t, "Reserve", h.cfg.Parking.MaxConflictRetries+1)
	assert.Zero(t, h.count(t, &durationdomain.Duration{}))
}

type stalledDirectory struct {
	accountdomain.Directory
}

func (stalledDirectory) ResolveAccount(ctx context.Context, _ string) (snowflake.ID, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestParkTimeoutIsPersistenceError(t *testing.T) {
	h := newHarness(t)
	h.cfg.Parking.OperationTimeout = 20 * time.Millisecond
	f1 := h.facility(t, 1)

	p := h.params()
	p.Directory = stalledDirectory{}
	svc := New(p)

	_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), h.capacity(t, f1).Available)
}

func TestLeaveWithoutSession(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	f1 := h.facility(t, 2)
	h.vehicle(t, "ABC123")
	h.vehicle(t, "XYZ999")

	_, err := svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "XYZ999"})
	require.NoError(t, err)
	before := h.capacity(t, f1)

	_, err = svc.Leave(ctx, domain.LeaveRequest{Vehicle: "ABC123"})
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	_, err = svc.Leave(ctx, domain.LeaveRequest{Vehicle: "GHOST"})
	assert.ErrorIs(t, err, domain.ErrUnknownVehicle)

	after := h.capacity(t, f1)
	assert.Equal(t, before, after)
	assert.Zero(t, h.count(t, &transactiondomain.TransactionRecord{}))
}

type failingRecorder struct {
	transactiondomain.Recorder
}

func (failingRecorder) Record(context.Context, *paymentdomain.Payment, *transactiondomain.TransactionRecord) error {
	return errors.New("disk full")
}

func TestLeaveBillingFailureStillReleasesCapacity(t *testing.T) {
	h := newHarness(t)
	f1 := h.facility(t, 1)
	h.vehicle(t, "ABC123")

	p := h.params()
	p.Recorder = failingRecorder{}
	svc := New(p)
	ctx := context.Background()

	_, err := svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	require.NoError(t, err)
	h.clock.Advance(30 * time.Minute)

	_, err = svc.Leave(ctx, domain.LeaveRequest{Vehicle: "ABC123"})
	assert.ErrorIs(t, err, domain.ErrBillingFailed)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	c := h.capacity(t, f1)
	assert.Equal(t, int64(1), c.Available)
	assert.Zero(t, h.count(t, &sessiondomain.Session{}))
	assert.Empty(t, h.sink.payments)

	// Billing failures are not retried by reopening the session.
	_, err = svc.Leave(ctx, domain.LeaveRequest{Vehicle: "ABC123"})
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.operations.WithLabelValues("leave", "billing_failed")))
}

func TestLeaveSinkFailureDoesNotUndoLeave(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("stream unavailable")
	svc := h.service()
	ctx := context.Background()

	f1 := h.facility(t, 1)
	h.vehicle(t, "ABC123")

	_, err := svc.Park(ctx, domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	require.NoError(t, err)
	h.clock.Advance(200 * time.Minute)

	left, err := svc.Leave(ctx, domain.LeaveRequest{Vehicle: "ABC123", PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), left.Amount)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.publishErrors))
	assert.Equal(t, int64(1), h.count(t, &paymentdomain.Payment{}))
}

func TestConcurrentLeaveSameVehicle(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	f1 := h.facility(t, 1)
	h.vehicle(t, "ABC123")
	_, err := svc.Park(context.Background(), domain.ParkRequest{FacilityID: f1, Vehicle: "ABC123"})
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	const workers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Leave(context.Background(), domain.LeaveRequest{Vehicle: "ABC123"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			if !errors.Is(err, domain.ErrNoActiveSession) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	c := h.capacity(t, f1)
	assert.Equal(t, int64(1), c.Available)
	assert.Equal(t, int64(0), c.Taken)
	assert.Equal(t, int64(1), h.count(t, &transactiondomain.TransactionRecord{}))
}
