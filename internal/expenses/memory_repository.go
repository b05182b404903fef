package expenses

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps expenses in process memory. Used when no
// database is configured and in tests.
type InMemoryRepository struct {
	mu         sync.RWMutex
	expenses   map[uuid.UUID]*Expense
	categories map[uuid.UUID]*Category
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		expenses:   make(map[uuid.UUID]*Expense),
		categories: make(map[uuid.UUID]*Category),
	}
}

func (r *InMemoryRepository) InsertExpense(_ context.Context, e *Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.expenses[e.ID] = &cp
	return nil
}

func (r *InMemoryRepository) DeleteExpense(_ context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expenses[id]; !ok {
		return 0, nil
	}
	delete(r.expenses, id)
	return 1, nil
}

// ListExpenses mirrors the postgres ordering: newest date first.
func (r *InMemoryRepository) ListExpenses(_ context.Context, from, to string) ([]*Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Expense{}
	for _, e := range r.expenses {
		if (from == "" || e.Date >= from) && (to == "" || e.Date <= to) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) InsertCategory(_ context.Context, c *Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrDuplicateName
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetCategory(_ context.Context, id uuid.UUID) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, ErrUnknownCategory
	}
	cp := *c
	return &cp, nil
}

func (r *InMemoryRepository) ListCategories(_ context.Context) ([]*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Category{}
	for _, c := range r.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
