// Package appointments books, edits and cancels spa appointments on top of
// the schedule engine and a relational store.
package appointments

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is the service booked. Every category lasts one hour.
type Category string

const (
	CategoryFacial        Category = "Facial"
	CategoryMassage       Category = "Massage"
	CategoryFacialMassage Category = "Facial+Massage"
)

var categoryPrices = map[Category]decimal.Decimal{
	CategoryFacial:        decimal.RequireFromString("100.00"),
	CategoryMassage:       decimal.RequireFromString("120.00"),
	CategoryFacialMassage: decimal.RequireFromString("200.00"),
}

// ParseCategory accepts the canonical names case-insensitively.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for c := range categoryPrices {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Price is the list price for the category.
func (c Category) Price() decimal.Decimal {
	return categoryPrices[c]
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusCompleted
}

// Appointment is a booked service.
type Appointment struct {
	ID           uuid.UUID       `json:"id"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	Client       string          `json:"client"`
	Category     Category        `json:"category"`
	Payment      decimal.Decimal `json:"payment"`
	Tip          decimal.Decimal `json:"tip"`
	Status       Status          `json:"status"`
	UpdateReason *string         `json:"update_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Match narrows the appointments the chat assistant is allowed to act on.
// Empty fields are not filtered on.
type Match struct {
	Client string
	Date   string
	Time   string
	From   string
}

// CreateRequest is the payload for booking a new appointment.
type CreateRequest struct {
	Date     string           `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string           `json:"time" validate:"required"`
	Client   string           `json:"client" validate:"required,max=120"`
	Category string           `json:"category" validate:"required"`
	Payment  *decimal.Decimal `json:"payment,omitempty"`
	Tip      *decimal.Decimal `json:"tip,omitempty"`
}

// UpdateRequest is an admin edit. Nil fields are left unchanged.
type UpdateRequest struct {
	Date     *string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time     *string          `json:"time,omitempty"`
	Client   *string          `json:"client,omitempty" validate:"omitempty,max=120"`
	Category *string          `json:"category,omitempty"`
	Payment  *decimal.Decimal `json:"payment,omitempty"`
	Tip      *decimal.Decimal `json:"tip,omitempty"`
	Reason   string           `json:"update_reason" validate:"required"`
}
