package schedule

import "errors"

// Reasons reported to callers. They are part of the API contract and rendered
// verbatim by clients.
const (
	ReasonInvalidDate     = "Invalid date format"
	ReasonClosedSunday    = "Closed on Sundays"
	ReasonPastDate        = "Cannot book in the past"
	ReasonBeyondHorizon   = "Cannot book more than 45 days in advance"
	ReasonNoSlots         = "No available time slots with 30-minute intervals"
	ReasonSlotTaken       = "Time slot is already booked"
	ReasonOutOfWindow     = "Time is outside of booking hours"
	ReasonInsufficientGap = "Appointments need at least 30 minutes between them"
)

var (
	ErrInvalidDateFormat = errors.New(ReasonInvalidDate)
	ErrClosedSunday      = errors.New(ReasonClosedSunday)
	ErrPastDate          = errors.New(ReasonPastDate)
	ErrBeyondHorizon     = errors.New(ReasonBeyondHorizon)
	ErrTimeSlotTaken     = errors.New(ReasonSlotTaken)
	ErrTimeOutOfWindow   = errors.New(ReasonOutOfWindow)
	ErrInsufficientGap   = errors.New(ReasonInsufficientGap)
	ErrInvalidTime       = errors.New("invalid time format")
	ErrRangeTooLong      = errors.New("date range too long")
)

// DateError reports why a date cannot be booked at all.
type DateError struct {
	Date   string
	Reason string
	kind   error
}

func (e *DateError) Error() string {
	return "schedule: " + e.Date + ": " + e.Reason
}

func (e *DateError) Unwrap() error {
	return e.kind
}

// ReasonFor maps a booking validation error to its client-facing reason.
func ReasonFor(err error) (string, bool) {
	var de *DateError
	switch {
	case errors.As(err, &de):
		return de.Reason, true
	case errors.Is(err, ErrTimeSlotTaken):
		return ReasonSlotTaken, true
	case errors.Is(err, ErrTimeOutOfWindow):
		return ReasonOutOfWindow, true
	case errors.Is(err, ErrInsufficientGap):
		return ReasonInsufficientGap, true
	case errors.Is(err, ErrInvalidTime):
		return ErrInvalidTime.Error(), true
	}
	return "", false
}

// InvalidDate builds the error returned for a date that is not YYYY-MM-DD.
func InvalidDate(date string) *DateError {
	return &DateError{Date: date, Reason: ReasonInvalidDate, kind: ErrInvalidDateFormat}
}
