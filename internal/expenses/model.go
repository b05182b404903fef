// Package expenses records what the spa spends, grouped into categories.
package expenses

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("expense not found")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrUnknownCategory = errors.New("unknown expense category")
	ErrDuplicateName   = errors.New("category name already exists")
	ErrStoreFailure    = errors.New("operation failed")
)

// Expense is a single outgoing payment.
type Expense struct {
	ID          uuid.UUID       `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Category groups expenses for the admin view.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateExpenseRequest is the payload for recording an expense.
type CreateExpenseRequest struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
}

// CreateCategoryRequest is the payload for adding a category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}
