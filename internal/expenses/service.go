package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-desk/pkg/logging"
)

// Service validates expense writes before they reach the store.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("expenses: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Record stores an expense. Amounts must be zero or more, and a category,
// when given, must exist and be active.
func (s *Service) Record(ctx context.Context, req CreateExpenseRequest) (*Expense, error) {
	if req.Amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if req.CategoryID != nil {
		cat, err := s.repo.GetCategory(ctx, *req.CategoryID)
		if err != nil {
			return nil, s.storeErr("get category", err)
		}
		if !cat.Active {
			return nil, ErrUnknownCategory
		}
	}

	e := &Expense{
		Date:        strings.TrimSpace(req.Date),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount.Round(2),
		CategoryID:  req.CategoryID,
	}
	if err := s.repo.InsertExpense(ctx, e); err != nil {
		return nil, s.storeErr("insert expense", err)
	}
	s.logger.Info("expense recorded", "expense_id", e.ID, "date", e.Date, "amount", e.Amount.StringFixed(2))
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.DeleteExpense(ctx, id)
	if err != nil {
		return s.storeErr("delete expense", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, from, to string) ([]*Expense, error) {
	out, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return nil, s.storeErr("list expenses", err)
	}
	return out, nil
}

func (s *Service) AddCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	c := &Category{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Color:       strings.ToLower(req.Color),
		Active:      true,
	}
	if err := s.repo.InsertCategory(ctx, c); err != nil {
		return nil, s.storeErr("insert category", err)
	}
	return c, nil
}

func (s *Service) Categories(ctx context.Context) ([]*Category, error) {
	out, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, s.storeErr("list categories", err)
	}
	return out, nil
}

func (s *Service) storeErr(op string, err error) error {
	if errors.Is(err, ErrUnknownCategory) || errors.Is(err, ErrDuplicateName) || errors.Is(err, ErrNotFound) {
		return err
	}
	s.logger.Error("expense store call failed", "error", err, "operation", op)
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}
