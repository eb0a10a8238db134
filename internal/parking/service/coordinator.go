package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/railzwaylabs/parkway/internal/account/domain"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/config"
	durationdomain "github.com/railzwaylabs/parkway/internal/duration/domain"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	"github.com/railzwaylabs/parkway/internal/parking/domain"
	paymentdomain "github.com/railzwaylabs/parkway/internal/payment/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
	transactiondomain "github.com/railzwaylabs/parkway/internal/transaction/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "github.com/railzwaylabs/parkway/internal/parking"

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	GenID      *snowflake.Node
	Metrics    *Metrics
	Directory  accountdomain.Directory
	Registry   sessiondomain.Registry
	Ledger     capacitydomain.Ledger
	Tracker    durationdomain.Tracker
	Engine     pricingdomain.Engine
	Facilities facilitydomain.Service
	Recorder   transactiondomain.Recorder
	Sink       paymentdomain.Sink
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	metrics    *Metrics
	tracer     trace.Tracer
	directory  accountdomain.Directory
	registry   sessiondomain.Registry
	ledger     capacitydomain.Ledger
	tracker    durationdomain.Tracker
	engine     pricingdomain.Engine
	facilities facilitydomain.Service
	recorder   transactiondomain.Recorder
	sink       paymentdomain.Sink

	maxRetries int
	timeout    time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("parking.service"),
		clock:      p.Clock,
		genID:      p.GenID,
		metrics:    p.Metrics,
		tracer:     otel.Tracer(tracerName),
		directory:  p.Directory,
		registry:   p.Registry,
		ledger:     p.Ledger,
		tracker:    p.Tracker,
		engine:     p.Engine,
		facilities: p.Facilities,
		recorder:   p.Recorder,
		sink:       p.Sink,
		maxRetries: max(p.Config.Parking.MaxConflictRetries, 0),
		timeout:    p.Config.Parking.OperationTimeout,
	}
}

func (s *Service) Park(ctx context.Context, req domain.ParkRequest) (resp *domain.ParkResponse, err error) {
	ctx, finish := s.begin(ctx, "park")
	defer func() { finish(err) }()

	vehicle, err := domain.NormalizeVehicle(req.Vehicle)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("parking.vehicle", vehicle),
		attribute.String("parking.facility_id", req.FacilityID.String()),
	)

	accountID, err := s.resolveAccount(ctx, vehicle)
	if err != nil {
		return nil, err
	}

	err = s.step(ctx, "registry.peek", func(ctx context.Context) error {
		_, err := s.registry.Peek(ctx, vehicle)
		return err
	})
	switch {
	case err == nil:
		return nil, domain.ErrAlreadyActive
	case !errors.Is(err, domain.ErrNoActiveSession):
		return nil, err
	}

	err = s.step(ctx, "capacity.reserve", func(ctx context.Context) error {
		return s.ledger.Reserve(ctx, req.FacilityID)
	})
	if err != nil {
		return nil, err
	}

	// From here on the reservation must be undone on failure, even when the
	// caller has gone away.
	bg := context.WithoutCancel(ctx)

	var dur *durationdomain.Duration
	err = s.step(ctx, "duration.open", func(ctx context.Context) error {
		var err error
		dur, err = s.tracker.Open(ctx)
		return err
	})
	if err != nil {
		s.releaseReservation(bg, req.FacilityID)
		return nil, err
	}

	session := &sessiondomain.Session{
		ID:         s.genID.Generate(),
		VehicleID:  vehicle,
		FacilityID: req.FacilityID,
		DurationID: dur.ID,
		AccountID:  accountID,
		CreatedAt:  dur.StartedAt,
	}
	err = s.step(ctx, "registry.open", func(ctx context.Context) error {
		return s.registry.TryOpen(ctx, session)
	})
	if err != nil && errors.Is(err, domain.ErrPersistence) && s.sessionCommitted(bg, session) {
		err = nil
	}
	if err != nil {
		s.releaseReservation(bg, req.FacilityID)
		s.discardDuration(bg, dur.ID)
		return nil, err
	}

	s.log.Debug("vehicle parked",
		zap.String("vehicle", vehicle),
		zap.String("facility_id", req.FacilityID.String()),
		zap.String("session_id", session.ID.String()),
	)
	return &domain.ParkResponse{
		SessionID:  session.ID,
		FacilityID: session.FacilityID,
		VehicleID:  vehicle,
		StartedAt:  dur.StartedAt,
	}, nil
}

func (s *Service) Leave(ctx context.Context, req domain.LeaveRequest) (resp *domain.LeaveResponse, err error) {
	ctx, finish := s.begin(ctx, "leave")
	defer func() { finish(err) }()

	vehicle, err := domain.NormalizeVehicle(req.Vehicle)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("parking.vehicle", vehicle))

	accountID, err := s.resolveAccount(ctx, vehicle)
	if err != nil {
		return nil, err
	}

	var session *sessiondomain.Session
	err = s.step(ctx, "registry.take", func(ctx context.Context) error {
		var err error
		session, err = s.registry.TakeActive(ctx, vehicle)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The session is gone. Everything below must run to completion.
	bg := context.WithoutCancel(ctx)

	var dur *durationdomain.Duration
	closeErr := s.step(bg, "duration.close", func(ctx context.Context) error {
		var err error
		dur, err = s.tracker.Close(ctx, session.DurationID)
		return err
	})

	releaseErr := s.step(bg, "capacity.release", func(ctx context.Context) error {
		return s.ledger.Release(ctx, session.FacilityID)
	})
	if releaseErr != nil {
		s.metrics.compensations.WithLabelValues("capacity.release", "failed").Inc()
		s.log.Error("capacity not released after leave",
			zap.String("vehicle", vehicle),
			zap.String("facility_id", session.FacilityID.String()),
			zap.String("session_id", session.ID.String()),
			zap.Error(releaseErr),
		)
	}

	if closeErr != nil {
		return nil, s.billingFailed(session, closeErr)
	}

	elapsed, err := s.tracker.ElapsedMinutes(*dur)
	if err != nil {
		return nil, s.billingFailed(session, err)
	}

	var (
		tiers    pricingdomain.RateTable
		currency string
	)
	err = s.step(bg, "facility.rates", func(ctx context.Context) error {
		var err error
		tiers, currency, err = s.facilities.RateTable(ctx, session.FacilityID)
		return err
	})
	if err != nil {
		return nil, s.billingFailed(session, err)
	}
	amount := s.engine.ComputeFee(elapsed, tiers)

	method := req.PaymentMethod
	if method == "" {
		method = paymentdomain.MethodAccount
	}
	payment := &paymentdomain.Payment{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Amount:    amount,
		Currency:  currency,
		Method:    method,
		PaidAt:    *dur.EndedAt,
	}
	record := &transactiondomain.TransactionRecord{
		ID:             s.genID.Generate(),
		SessionID:      session.ID,
		VehicleID:      vehicle,
		FacilityID:     session.FacilityID,
		AccountID:      session.AccountID,
		DurationID:     dur.ID,
		PaymentID:      payment.ID,
		StartedAt:      dur.StartedAt,
		EndedAt:        *dur.EndedAt,
		ElapsedMinutes: elapsed,
		Amount:         amount,
		Currency:       currency,
	}
	err = s.step(bg, "transaction.record", func(ctx context.Context) error {
		return s.recorder.Record(ctx, payment, record)
	})
	if err != nil {
		return nil, s.billingFailed(session, err)
	}

	s.publish(bg, payment)

	s.log.Debug("vehicle left",
		zap.String("vehicle", vehicle),
		zap.String("transaction_id", record.ID.String()),
		zap.Int64("amount", amount),
	)
	return &domain.LeaveResponse{
		TransactionID:  record.ID,
		PaymentID:      payment.ID,
		Amount:         amount,
		Currency:       currency,
		ElapsedMinutes: elapsed,
	}, nil
}

func (s *Service) resolveAccount(ctx context.Context, vehicle string) (snowflake.ID, error) {
	var accountID snowflake.ID
	err := s.step(ctx, "directory.resolve", func(ctx context.Context) error {
		var err error
		accountID, err = s.directory.ResolveAccount(ctx, vehicle)
		if errors.Is(err, accountdomain.ErrNotFound) {
			return domain.ErrUnknownVehicle
		}
		return err
	})
	return accountID, err
}

// sessionCommitted resolves an ambiguous TryOpen failure by checking whether
// our own session made it into the registry.
func (s *Service) sessionCommitted(ctx context.Context, session *sessiondomain.Session) bool {
	var current *sessiondomain.Session
	err := s.step(ctx, "registry.peek", func(ctx context.Context) error {
		var err error
		current, err = s.registry.Peek(ctx, session.VehicleID)
		return err
	})
	return err == nil && current.ID == session.ID
}

func (s *Service) releaseReservation(ctx context.Context, facilityID snowflake.ID) {
	err := s.step(ctx, "capacity.release", func(ctx context.Context) error {
		return s.ledger.Release(ctx, facilityID)
	})
	if err != nil {
		s.metrics.compensations.WithLabelValues("capacity.release", "failed").Inc()
		s.log.Error("failed to release reserved capacity",
			zap.String("facility_id", facilityID.String()), zap.Error(err))
		return
	}
	s.metrics.compensations.WithLabelValues("capacity.release", "ok").Inc()
}

func (s *Service) discardDuration(ctx context.Context, id snowflake.ID) {
	err := s.step(ctx, "duration.discard", func(ctx context.Context) error {
		return s.tracker.Discard(ctx, id)
	})
	if err != nil {
		s.metrics.compensations.WithLabelValues("duration.discard", "failed").Inc()
		s.log.Warn("failed to discard unused duration",
			zap.String("duration_id", id.String()), zap.Error(err))
		return
	}
	s.metrics.compensations.WithLabelValues("duration.discard", "ok").Inc()
}

func (s *Service) publish(ctx context.Context, payment *paymentdomain.Payment) {
	pubCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.sink.Publish(pubCtx, payment); err != nil {
		s.metrics.publishErrors.Inc()
		s.log.Error("failed to publish payment",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
	}
}

func (s *Service) billingFailed(session *sessiondomain.Session, err error) error {
	s.log.Error("leave billing failed",
		zap.String("vehicle", session.VehicleID),
		zap.String("session_id", session.ID.String()),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", domain.ErrBillingFailed, err)
}

// step runs one collaborator call under the operation timeout, retrying
// optimistic conflicts. Anything that is neither success nor a domain
// outcome comes back as a *PersistenceError.
func (s *Service) step(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		opCtx, cancel := s.withTimeout(ctx)
		err = fn(opCtx)
		cancel()

		if !isConflict(err) {
			break
		}
		s.metrics.conflicts.WithLabelValues(op).Inc()
	}

	switch {
	case err == nil:
		return nil
	case isConflict(err):
		return &domain.PersistenceError{Op: op, Err: err}
	case isDomainOutcome(err):
		return err
	default:
		s.log.Error("collaborator call failed", zap.String("op", op), zap.Error(err))
		return &domain.PersistenceError{Op: op, Err: err}
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "parking."+operation)
	started := time.Now()

	return ctx, func(err error) {
		s.metrics.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
		s.metrics.operations.WithLabelValues(operation, domain.Code(err)).Inc()

		if err != nil {
			span.SetAttributes(attribute.String("parking.outcome", domain.Code(err)))
			if !domain.IsRejection(err) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}
}

func isConflict(err error) bool {
	return errors.Is(err, capacitydomain.ErrConflict) || errors.Is(err, sessiondomain.ErrConflict)
}

// isDomainOutcome lists errors that carry meaning for the sequence and must
// not be masked as persistence failures.
func isDomainOutcome(err error) bool {
	if domain.IsRejection(err) {
		return true
	}
	switch {
	case errors.Is(err, facilitydomain.ErrNotFound),
		errors.Is(err, durationdomain.ErrAlreadyClosed),
		errors.Is(err, durationdomain.ErrNotFound),
		errors.Is(err, capacitydomain.ErrInvariant):
		return true
	}
	return false
}
