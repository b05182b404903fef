package appointments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-desk/internal/timeparse"
)

// Repository defines the interface for appointment storage.
type Repository interface {
	Insert(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update writes every mutable column if the stored status is still
	// expected and returns the affected row count.
	Update(ctx context.Context, appt *Appointment, expected Status) (int64, error)
	// BookedTimes returns start times of non-cancelled appointments on date,
	// skipping exclude when it is not uuid.Nil.
	BookedTimes(ctx context.Context, date string, exclude uuid.UUID) ([]string, error)
	ListByDate(ctx context.Context, date string) ([]*Appointment, error)
	ListBetween(ctx context.Context, from, to string) ([]*Appointment, error)
	FindPending(ctx context.Context, match Match) ([]*Appointment, error)
}

// InMemoryRepository keeps appointments in a map. Used for local runs and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Appointment
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[uuid.UUID]*Appointment),
		now:   time.Now,
	}
}

func (r *InMemoryRepository) Insert(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := r.now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	r.items[appt.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, appt *Appointment, expected Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[appt.ID]
	if !ok || existing.Status != expected {
		return 0, nil
	}
	cp := *appt
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = r.now().UTC()
	r.items[appt.ID] = &cp
	appt.UpdatedAt = cp.UpdatedAt
	return 1, nil
}

func (r *InMemoryRepository) BookedTimes(ctx context.Context, date string, exclude uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Appointment
	for _, appt := range r.items {
		if appt.Date != date || !appt.Status.Active() || appt.ID == exclude {
			continue
		}
		out = append(out, appt)
	}
	sortByClock(out)
	times := make([]string, 0, len(out))
	for _, appt := range out {
		times = append(times, appt.Time)
	}
	return times, nil
}

func (r *InMemoryRepository) ListByDate(ctx context.Context, date string) ([]*Appointment, error) {
	return r.ListBetween(ctx, date, date)
}

func (r *InMemoryRepository) ListBetween(ctx context.Context, from, to string) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Appointment
	for _, appt := range r.items {
		if appt.Date < from || appt.Date > to {
			continue
		}
		cp := *appt
		out = append(out, &cp)
	}
	sortByClock(out)
	return out, nil
}

func (r *InMemoryRepository) FindPending(ctx context.Context, match Match) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client := strings.ToLower(strings.TrimSpace(match.Client))
	var out []*Appointment
	for _, appt := range r.items {
		if appt.Status != StatusPending {
			continue
		}
		if client != "" && !strings.Contains(strings.ToLower(appt.Client), client) {
			continue
		}
		if match.Date != "" && appt.Date != match.Date {
			continue
		}
		if match.Time != "" && appt.Time != match.Time {
			continue
		}
		if match.From != "" && appt.Date < match.From {
			continue
		}
		cp := *appt
		out = append(out, &cp)
	}
	sortByClock(out)
	return out, nil
}

// sortByClock orders by date then start time. Labels like "10:00 PM" do not
// sort lexically, so times go through the clock parser.
func sortByClock(appts []*Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		mi, _ := timeparse.ClockMinutes(appts[i].Time)
		mj, _ := timeparse.ClockMinutes(appts[j].Time)
		return mi < mj
	})
}
