package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-desk/internal/audit"
	"github.com/wolfman30/spa-desk/internal/observability/metrics"
	"github.com/wolfman30/spa-desk/internal/schedule"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

var serviceNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

const bookableDay = "2026-10-20"

type recordingAuditor struct {
	mu      sync.Mutex
	events  []audit.Event
	changes [][]audit.Change
}

func (a *recordingAuditor) Record(ctx context.Context, ev audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAuditor) RecordChanges(ctx context.Context, id, actor, reason string, changes []audit.Change) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, audit.Event{EventType: audit.EventAppointmentUpdated, AppointmentID: id, Actor: actor, Reason: reason})
	a.changes = append(a.changes, changes)
	return nil
}

func (a *recordingAuditor) ListForAppointment(ctx context.Context, id string) ([]audit.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, ev := range a.events {
		if ev.AppointmentID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}

type failingRepo struct {
	*InMemoryRepository
}

func (failingRepo) BookedTimes(context.Context, string, uuid.UUID) ([]string, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newTestService(t *testing.T) (*Service, *recordingAuditor) {
	t.Helper()
	engine := schedule.NewEngine(schedule.WithClock(func() time.Time { return serviceNow }), schedule.WithLocation(time.UTC))
	auditor := &recordingAuditor{}
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	return NewService(NewInMemoryRepository(), engine, auditor, m, logging.Discard()), auditor
}

func book(t *testing.T, svc *Service, clock string) *Appointment {
	t.Helper()
	appt, err := svc.Create(context.Background(), CreateRequest{Date: bookableDay, Time: clock, Client: "Orla Byrne", Category: "Facial"})
	require.NoError(t, err)
	return appt
}

func TestCreateDefaultsPaymentToCategoryPrice(t *testing.T) {
	svc, auditor := newTestService(t)

	appt, err := svc.Create(WithActor(context.Background(), "front-desk"), CreateRequest{
		Date:     bookableDay,
		Time:     "3:30pm",
		Client:   "  Orla Byrne ",
		Category: "facial+massage",
	})
	require.NoError(t, err)
	assert.Equal(t, "3:30 PM", appt.Time)
	assert.Equal(t, "Orla Byrne", appt.Client)
	assert.Equal(t, CategoryFacialMassage, appt.Category)
	assert.Equal(t, StatusPending, appt.Status)
	assert.True(t, appt.Payment.Equal(decimal.RequireFromString("200")))
	assert.True(t, appt.Tip.IsZero())

	require.Len(t, auditor.events, 1)
	assert.Equal(t, audit.EventAppointmentCreated, auditor.events[0].EventType)
	assert.Equal(t, "front-desk", auditor.events[0].Actor)
}

func TestCreateRejectsConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	book(t, svc, "2:00 PM")

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"same slot", CreateRequest{Date: bookableDay, Time: "2:00 PM", Client: "Bea", Category: "Massage"}, schedule.ErrTimeSlotTaken},
		{"inside cushion", CreateRequest{Date: bookableDay, Time: "3:00 PM", Client: "Bea", Category: "Massage"}, schedule.ErrInsufficientGap},
		{"outside window", CreateRequest{Date: bookableDay, Time: "9:00 AM", Client: "Bea", Category: "Massage"}, schedule.ErrTimeOutOfWindow},
		{"sunday", CreateRequest{Date: "2026-10-18", Time: "4:00 PM", Client: "Bea", Category: "Massage"}, schedule.ErrClosedSunday},
		{"past", CreateRequest{Date: "2026-10-13", Time: "4:00 PM", Client: "Bea", Category: "Massage"}, schedule.ErrPastDate},
		{"bad time", CreateRequest{Date: bookableDay, Time: "teatime", Client: "Bea", Category: "Massage"}, schedule.ErrInvalidTime},
		{"bad category", CreateRequest{Date: bookableDay, Time: "5:00 PM", Client: "Bea", Category: "Pedicure"}, ErrInvalidCategory},
		{"blank client", CreateRequest{Date: bookableDay, Time: "5:00 PM", Client: "  ", Category: "Massage"}, ErrInvalidClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.Create(context.Background(), CreateRequest{Date: bookableDay, Time: "3:30 PM", Client: "Bea", Category: "Massage"})
	assert.NoError(t, err)
}

func TestCreateSerializesSameSlot(t *testing.T) {
	svc, _ := newTestService(t)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), CreateRequest{
				Date: bookableDay, Time: "5:00 PM", Client: fmt.Sprintf("client-%d", i), Category: "Facial",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, schedule.ErrTimeSlotTaken):
				taken++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, taken)
}

func TestAvailabilityReflectsBookings(t *testing.T) {
	svc, _ := newTestService(t)
	book(t, svc, "4:00 PM")

	got, err := svc.Availability(context.Background(), bookableDay)
	require.NoError(t, err)
	assert.True(t, got.Available)
	assert.Equal(t, []string{"4:00 PM"}, got.BookedTimes)
	assert.Equal(t, []string{"2:00 PM", "2:30 PM", "5:30 PM", "6:00 PM", "6:30 PM", "7:00 PM", "7:30 PM"}, got.AvailableSlots)

	bad, err := svc.Availability(context.Background(), "20-10-2026")
	require.NoError(t, err)
	assert.False(t, bad.Available)
	assert.Equal(t, schedule.ReasonInvalidDate, bad.Reason)
}

func TestAvailabilityHidesStoreErrors(t *testing.T) {
	engine := schedule.NewEngine(schedule.WithClock(func() time.Time { return serviceNow }), schedule.WithLocation(time.UTC))
	svc := NewService(failingRepo{NewInMemoryRepository()}, engine, nil, nil, logging.Discard())

	_, err := svc.Availability(context.Background(), bookableDay)
	require.ErrorIs(t, err, ErrStoreFailure)
	assert.Contains(t, err.Error(), "operation failed")
}

func TestAvailabilityRangeSkipsCancelled(t *testing.T) {
	svc, _ := newTestService(t)
	appt := book(t, svc, "4:00 PM")
	_, err := svc.Cancel(context.Background(), appt.ID, "client ill")
	require.NoError(t, err)

	days, err := svc.AvailabilityRange(context.Background(), "2026-10-19", bookableDay)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Len(t, days[1].AvailableSlots, 12)
	assert.Empty(t, days[1].BookedTimes)
}

func TestUpdateRequiresReason(t *testing.T) {
	svc, _ := newTestService(t)
	appt := book(t, svc, "2:00 PM")

	client := "Orla B."
	_, err := svc.Update(context.Background(), appt.ID, UpdateRequest{Client: &client, Reason: "   "})
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestUpdateCategoryRecomputesPayment(t *testing.T) {
	svc, auditor := newTestService(t)
	appt := book(t, svc, "2:00 PM")

	category := "Massage"
	updated, err := svc.Update(context.Background(), appt.ID, UpdateRequest{Category: &category, Reason: "upgrade"})
	require.NoError(t, err)
	assert.True(t, updated.Payment.Equal(decimal.RequireFromString("120")))
	require.NotNil(t, updated.UpdateReason)
	assert.Equal(t, "upgrade", *updated.UpdateReason)

	require.Len(t, auditor.changes, 1)
	fields := map[string]audit.Change{}
	for _, c := range auditor.changes[0] {
		fields[c.Field] = c
	}
	assert.Equal(t, "Facial", fields["category"].From)
	assert.Equal(t, "120.00", fields["payment"].To)

	category = "Facial"
	override := decimal.RequireFromString("80")
	updated, err = svc.Update(context.Background(), appt.ID, UpdateRequest{Category: &category, Payment: &override, Reason: "discount"})
	require.NoError(t, err)
	assert.True(t, updated.Payment.Equal(override))
}

func TestUpdateMoveIsRevalidated(t *testing.T) {
	svc, _ := newTestService(t)
	first := book(t, svc, "2:00 PM")
	book(t, svc, "5:00 PM")

	clash := "4:30 PM"
	_, err := svc.Update(context.Background(), first.ID, UpdateRequest{Time: &clash, Reason: "later"})
	assert.ErrorIs(t, err, schedule.ErrInsufficientGap)

	// Moving within its own cushion is fine since it does not conflict with itself.
	nudge := "2:30 PM"
	moved, err := svc.Update(context.Background(), first.ID, UpdateRequest{Time: &nudge, Reason: "later"})
	require.NoError(t, err)
	assert.Equal(t, "2:30 PM", moved.Time)
}

func TestCancelAndComplete(t *testing.T) {
	svc, auditor := newTestService(t)
	appt := book(t, svc, "2:00 PM")

	_, err := svc.Cancel(context.Background(), appt.ID, "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	cancelled, err := svc.Cancel(context.Background(), appt.ID, "client ill")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), appt.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Complete(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	other := book(t, svc, "2:00 PM")
	done, err := svc.Complete(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	_, err = svc.Complete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	last := auditor.events[len(auditor.events)-1]
	assert.Equal(t, audit.EventAppointmentCompleted, last.EventType)
}

// cancelAfterRead cancels the stored row right after the next Get returns,
// as a concurrent chat cancellation would.
type cancelAfterRead struct {
	*InMemoryRepository
	armed bool
}

func (r *cancelAfterRead) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := r.InMemoryRepository.Get(ctx, id)
	if err != nil || !r.armed {
		return appt, err
	}
	r.armed = false
	cancelled := *appt
	cancelled.Status = StatusCancelled
	if _, err := r.InMemoryRepository.Update(ctx, &cancelled, StatusPending); err != nil {
		return nil, err
	}
	return appt, nil
}

func TestWritesDoNotReviveConcurrentCancel(t *testing.T) {
	engine := schedule.NewEngine(schedule.WithClock(func() time.Time { return serviceNow }), schedule.WithLocation(time.UTC))
	repo := &cancelAfterRead{InMemoryRepository: NewInMemoryRepository()}
	svc := NewService(repo, engine, nil, nil, logging.Discard())

	tests := []struct {
		name string
		run  func(id uuid.UUID) error
	}{
		{"update", func(id uuid.UUID) error {
			tip := decimal.RequireFromString("15")
			_, err := svc.Update(context.Background(), id, UpdateRequest{Tip: &tip, Reason: "tip added"})
			return err
		}},
		{"complete", func(id uuid.UUID) error {
			_, err := svc.Complete(context.Background(), id)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt, err := svc.Create(context.Background(), CreateRequest{Date: bookableDay, Time: "2:00 PM", Client: "Orla Byrne", Category: "Facial"})
			require.NoError(t, err)

			repo.armed = true
			assert.ErrorIs(t, tt.run(appt.ID), ErrInvalidTransition)

			stored, err := repo.InMemoryRepository.Get(context.Background(), appt.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, stored.Status)
			assert.True(t, stored.Tip.IsZero())
		})
	}
}

func TestFindPendingDefaultsToToday(t *testing.T) {
	svc, _ := newTestService(t)
	book(t, svc, "2:00 PM")

	found, err := svc.FindPending(context.Background(), Match{Client: "orla"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = svc.FindPending(context.Background(), Match{Client: "orla", From: "2026-10-21"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHistoryReadsAuditTrail(t *testing.T) {
	svc, _ := newTestService(t)
	appt := book(t, svc, "2:00 PM")
	_, err := svc.Cancel(context.Background(), appt.ID, "client called")
	require.NoError(t, err)

	events, err := svc.History(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, audit.EventAppointmentCancelled, events[1].EventType)

	_, err = svc.History(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
