package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-desk/internal/audit"
	"github.com/wolfman30/spa-desk/internal/observability/metrics"
	"github.com/wolfman30/spa-desk/internal/schedule"
	"github.com/wolfman30/spa-desk/internal/timeparse"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

var appointmentsTracer = otel.Tracer("spadesk.internal.appointments")

// Auditor records appointment changes.
type Auditor interface {
	Record(ctx context.Context, event audit.Event) error
	RecordChanges(ctx context.Context, appointmentID, actor, reason string, changes []audit.Change) error
}

// AuditTrail is implemented by auditors that can read their records back.
type AuditTrail interface {
	ListForAppointment(ctx context.Context, appointmentID string) ([]audit.Event, error)
}

type actorKey struct{}

// WithActor tags ctx with who is making a change, for the audit trail.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// Service applies booking rules before touching the store.
type Service struct {
	repo    Repository
	engine  *schedule.Engine
	auditor Auditor
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	locks   *dateLocks
}

// NewService constructs an appointments service. auditor and m may be nil.
func NewService(repo Repository, engine *schedule.Engine, auditor Auditor, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if engine == nil {
		engine = schedule.NewEngine()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		engine:  engine,
		auditor: auditor,
		metrics: m,
		logger:  logger,
		locks:   newDateLocks(),
	}
}

// Engine exposes the schedule engine the service validates against.
func (s *Service) Engine() *schedule.Engine {
	return s.engine
}

// Availability loads booked times for date and computes open slots.
func (s *Service) Availability(ctx context.Context, date string) (schedule.Availability, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.availability")
	defer span.End()
	span.SetAttributes(attribute.String("spadesk.date", date))

	if _, err := timeparse.ParseCanonicalDate(date, s.engine.Location()); err != nil {
		return s.engine.Availability(date, nil), nil
	}

	booked, err := s.bookedTimes(ctx, date, uuid.Nil)
	if err != nil {
		span.RecordError(err)
		return schedule.Availability{}, err
	}
	result := s.engine.Availability(date, booked)
	s.metrics.ObserveAvailability(result.Available)
	return result, nil
}

// AvailabilityRange computes availability for each day from..to.
func (s *Service) AvailabilityRange(ctx context.Context, from, to string) ([]schedule.Availability, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.availability_range")
	defer span.End()

	loc := s.engine.Location()
	start, err := timeparse.ParseCanonicalDate(from, loc)
	if err != nil {
		return nil, schedule.InvalidDate(from)
	}
	end, err := timeparse.ParseCanonicalDate(to, loc)
	if err != nil {
		return nil, schedule.InvalidDate(to)
	}
	if end.Before(start) {
		from, to = to, from
	}

	appts, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to load appointments for range", "error", err, "from", from, "to", to)
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	booked := make(map[string][]string)
	for _, a := range appts {
		if a.Status.Active() {
			booked[a.Date] = append(booked[a.Date], a.Time)
		}
	}
	return s.engine.ForRange(from, to, booked)
}

// Create books a pending appointment after checking the slot is free.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("spadesk.date", req.Date),
		attribute.String("spadesk.time", req.Time),
	)

	appt, err := s.newAppointment(req)
	if err != nil {
		s.metrics.ObserveOperation("create", "invalid")
		return nil, err
	}

	unlock := s.locks.lock(appt.Date)
	defer unlock()

	booked, err := s.bookedTimes(ctx, appt.Date, uuid.Nil)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveOperation("create", "error")
		return nil, err
	}
	if err := s.engine.ValidateBooking(appt.Date, appt.Time, booked); err != nil {
		s.metrics.ObserveOperation("create", "rejected")
		return nil, err
	}

	if err := s.repo.Insert(ctx, appt); err != nil {
		span.RecordError(err)
		s.metrics.ObserveOperation("create", "error")
		s.logger.Error("failed to insert appointment", "error", err, "date", appt.Date, "time", appt.Time)
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	s.record(ctx, audit.Event{EventType: audit.EventAppointmentCreated, AppointmentID: appt.ID.String(), Actor: actorFrom(ctx)})
	s.metrics.ObserveOperation("create", "ok")
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "date", appt.Date, "time", appt.Time, "category", appt.Category)
	return appt, nil
}

func (s *Service) newAppointment(req CreateRequest) (*Appointment, error) {
	client := strings.TrimSpace(req.Client)
	if client == "" {
		return nil, ErrInvalidClient
	}
	category, ok := ParseCategory(req.Category)
	if !ok {
		return nil, ErrInvalidCategory
	}
	clock, err := timeparse.NormalizeTime(req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", schedule.ErrInvalidTime, req.Time)
	}

	appt := &Appointment{
		Date:     strings.TrimSpace(req.Date),
		Time:     clock,
		Client:   client,
		Category: category,
		Payment:  category.Price(),
		Tip:      decimal.Zero,
		Status:   StatusPending,
	}
	if req.Payment != nil {
		appt.Payment = *req.Payment
	}
	if req.Tip != nil {
		appt.Tip = *req.Tip
	}
	if appt.Payment.IsNegative() || appt.Tip.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return appt, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeErr("get", err, id)
	}
	return appt, nil
}

// ListByDate returns every appointment on date in start-time order.
func (s *Service) ListByDate(ctx context.Context, date string) ([]*Appointment, error) {
	if _, err := timeparse.ParseCanonicalDate(date, s.engine.Location()); err != nil {
		return nil, schedule.InvalidDate(date)
	}
	appts, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, s.storeErr("list", err, uuid.Nil)
	}
	return appts, nil
}

// History returns the audit trail of an existing appointment, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]audit.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	trail, ok := s.auditor.(AuditTrail)
	if !ok {
		return []audit.Event{}, nil
	}
	events, err := trail.ListForAppointment(ctx, id.String())
	if err != nil {
		return nil, s.storeErr("history", err, id)
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

// FindPending looks up pending appointments for the chat assistant.
func (s *Service) FindPending(ctx context.Context, match Match) ([]*Appointment, error) {
	if match.From == "" {
		match.From = timeparse.FormatCanonicalDate(s.engine.Today())
	}
	appts, err := s.repo.FindPending(ctx, match)
	if err != nil {
		return nil, s.storeErr("find", err, uuid.Nil)
	}
	return appts, nil
}

// Update applies an admin edit. A reason is mandatory. Changing the category
// recomputes payment from the price table unless a payment is supplied.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.update")
	defer span.End()
	span.SetAttributes(attribute.String("spadesk.appointment_id", id.String()))

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		s.metrics.ObserveOperation("update", "invalid")
		return nil, ErrReasonRequired
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeErr("update", err, id)
	}
	next := *current

	var changes []audit.Change
	track := func(field, from, to string) {
		if from != to {
			changes = append(changes, audit.Change{Field: field, From: from, To: to})
		}
	}

	if req.Client != nil {
		client := strings.TrimSpace(*req.Client)
		if client == "" {
			return nil, ErrInvalidClient
		}
		next.Client = client
	}
	if req.Date != nil {
		next.Date = strings.TrimSpace(*req.Date)
	}
	if req.Time != nil {
		clock, err := timeparse.NormalizeTime(*req.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", schedule.ErrInvalidTime, *req.Time)
		}
		next.Time = clock
	}
	if req.Category != nil {
		category, ok := ParseCategory(*req.Category)
		if !ok {
			return nil, ErrInvalidCategory
		}
		if category != next.Category && req.Payment == nil {
			next.Payment = category.Price()
		}
		next.Category = category
	}
	if req.Payment != nil {
		next.Payment = *req.Payment
	}
	if req.Tip != nil {
		next.Tip = *req.Tip
	}
	if next.Payment.IsNegative() || next.Tip.IsNegative() {
		return nil, ErrNegativeAmount
	}
	next.UpdateReason = &reason

	track("client", current.Client, next.Client)
	track("date", current.Date, next.Date)
	track("time", current.Time, next.Time)
	track("category", string(current.Category), string(next.Category))
	track("payment", current.Payment.StringFixed(2), next.Payment.StringFixed(2))
	track("tip", current.Tip.StringFixed(2), next.Tip.StringFixed(2))

	moved := next.Date != current.Date || next.Time != current.Time
	if moved && next.Status.Active() {
		unlock := s.locks.lockPair(current.Date, next.Date)
		defer unlock()

		booked, err := s.bookedTimes(ctx, next.Date, id)
		if err != nil {
			return nil, err
		}
		if err := s.engine.ValidateBooking(next.Date, next.Time, booked); err != nil {
			s.metrics.ObserveOperation("update", "rejected")
			return nil, err
		}
	}

	if err := s.write(ctx, "update", &next, current.Status); err != nil {
		return nil, err
	}
	if s.auditor != nil {
		if err := s.auditor.RecordChanges(ctx, id.String(), actorFrom(ctx), reason, changes); err != nil {
			s.logger.Warn("failed to record audit event", "error", err, "appointment_id", id)
		}
	}
	s.metrics.ObserveOperation("update", "ok")
	s.logger.Info("appointment updated", "appointment_id", id, "changes", len(changes))
	return &next, nil
}

// Cancel marks an appointment cancelled, releasing its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("spadesk.appointment_id", id.String()))

	reason = strings.TrimSpace(reason)
	if reason == "" {
		s.metrics.ObserveOperation("cancel", "invalid")
		return nil, ErrReasonRequired
	}
	return s.transition(ctx, "cancel", id, StatusCancelled, &reason, audit.EventAppointmentCancelled)
}

// Complete marks a pending appointment as done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.complete")
	defer span.End()
	span.SetAttributes(attribute.String("spadesk.appointment_id", id.String()))

	return s.transition(ctx, "complete", id, StatusCompleted, nil, audit.EventAppointmentCompleted)
}

func (s *Service) transition(ctx context.Context, op string, id uuid.UUID, to Status, reason *string, event audit.EventType) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeErr(op, err, id)
	}
	if appt.Status != StatusPending {
		s.metrics.ObserveOperation(op, "invalid")
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, to)
	}
	appt.Status = to
	if reason != nil {
		appt.UpdateReason = reason
	}
	if err := s.write(ctx, op, appt, StatusPending); err != nil {
		return nil, err
	}

	ev := audit.Event{EventType: event, AppointmentID: id.String(), Actor: actorFrom(ctx)}
	if reason != nil {
		ev.Reason = *reason
	}
	s.record(ctx, ev)
	s.metrics.ObserveOperation(op, "ok")
	s.logger.Info("appointment status changed", "appointment_id", id, "status", to)
	return appt, nil
}

// write stores appt only if its status is still expected, so a change read
// before a concurrent cancel or complete cannot bring the row back.
func (s *Service) write(ctx context.Context, op string, appt *Appointment, expected Status) error {
	start := time.Now()
	n, err := s.repo.Update(ctx, appt, expected)
	s.metrics.ObserveStoreLatency("update", time.Since(start).Seconds())
	if err != nil {
		s.metrics.ObserveOperation(op, "error")
		return s.storeErr(op, err, appt.ID)
	}
	if n > 0 {
		return nil
	}
	stored, err := s.repo.Get(ctx, appt.ID)
	if err != nil {
		return s.storeErr(op, err, appt.ID)
	}
	s.metrics.ObserveOperation(op, "conflict")
	return fmt.Errorf("%w: %s is now %s", ErrInvalidTransition, appt.ID, stored.Status)
}

func (s *Service) bookedTimes(ctx context.Context, date string, exclude uuid.UUID) ([]string, error) {
	start := time.Now()
	booked, err := s.repo.BookedTimes(ctx, date, exclude)
	s.metrics.ObserveStoreLatency("booked_times", time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("failed to load booked times", "error", err, "date", date)
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return booked, nil
}

func (s *Service) storeErr(op string, err error, id uuid.UUID) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	s.logger.Error("appointment store call failed", "error", err, "operation", op, "appointment_id", id)
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}

func (s *Service) record(ctx context.Context, ev audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, ev); err != nil {
		s.logger.Warn("failed to record audit event", "error", err, "event_type", ev.EventType, "appointment_id", ev.AppointmentID)
	}
}
