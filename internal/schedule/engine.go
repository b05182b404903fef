// Package schedule decides which appointment slots on a day can still be
// booked. Everything here is a pure function of its inputs and the injected
// clock; callers fetch booked times from the store and pass them in.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/spa-desk/internal/timeparse"
)

const maxRangeDays = 93

// Availability is the bookable state of one calendar day.
type Availability struct {
	Date           string   `json:"date"`
	Available      bool     `json:"available"`
	Reason         string   `json:"reason,omitempty"`
	AvailableSlots []string `json:"available_slots"`
	BookedTimes    []string `json:"booked_times"`
	AllSlots       []string `json:"all_slots"`
}

// Engine evaluates day and slot rules against a fixed grid.
type Engine struct {
	grid        Grid
	duration    int
	gap         int
	horizonDays int
	loc         *time.Location
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithGrid replaces the default candidate grid.
func WithGrid(g Grid) Option {
	return func(e *Engine) { e.grid = g }
}

// WithHorizonDays sets how many days ahead bookings are accepted.
func WithHorizonDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.horizonDays = days
		}
	}
}

// WithLocation sets the timezone whose day boundary defines "today".
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine returns an engine with 1 hour services, a 30 minute mandatory
// gap and a 45 day horizon on the default grid.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		grid:        DefaultGrid(),
		duration:    60,
		gap:         30,
		horizonDays: 45,
		loc:         time.Local,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Grid exposes the candidate grid.
func (e *Engine) Grid() Grid {
	return e.grid
}

// Location is the timezone the engine evaluates days in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Today is the current calendar day in the engine's location.
func (e *Engine) Today() time.Time {
	return timeparse.StartOfDay(e.now().In(e.loc))
}

// CheckDate applies the day-level rules in order: format, Sunday closure,
// past dates, then the booking horizon. The first failure wins.
func (e *Engine) CheckDate(date string) (time.Time, error) {
	day, err := timeparse.ParseCanonicalDate(date, e.loc)
	if err != nil {
		return time.Time{}, &DateError{Date: date, Reason: ReasonInvalidDate, kind: ErrInvalidDateFormat}
	}
	if day.Weekday() == time.Sunday {
		return day, &DateError{Date: date, Reason: ReasonClosedSunday, kind: ErrClosedSunday}
	}
	today := e.Today()
	if day.Before(today) {
		return day, &DateError{Date: date, Reason: ReasonPastDate, kind: ErrPastDate}
	}
	if day.After(today.AddDate(0, 0, e.horizonDays)) {
		return day, &DateError{Date: date, Reason: e.horizonReason(), kind: ErrBeyondHorizon}
	}
	return day, nil
}

func (e *Engine) horizonReason() string {
	if e.horizonDays == 45 {
		return ReasonBeyondHorizon
	}
	return fmt.Sprintf("Cannot book more than %d days in advance", e.horizonDays)
}

// Availability computes which grid slots remain open on date given the start
// times already booked there. Booked entries that do not parse are ignored.
func (e *Engine) Availability(date string, booked []string) Availability {
	result := Availability{
		Date:           date,
		AvailableSlots: []string{},
		BookedTimes:    append([]string{}, booked...),
		AllSlots:       e.grid.Slots(),
	}

	if _, err := e.CheckDate(date); err != nil {
		var de *DateError
		if errors.As(err, &de) {
			result.Reason = de.Reason
		}
		return result
	}

	bookedMinutes := parseBooked(booked)
	for i, start := range e.grid.starts() {
		if e.blocked(start, bookedMinutes) {
			continue
		}
		result.AvailableSlots = append(result.AvailableSlots, result.AllSlots[i])
	}

	result.Available = len(result.AvailableSlots) > 0
	if !result.Available {
		result.Reason = ReasonNoSlots
	}
	return result
}

// ValidateBooking checks that a new booking at clock on date satisfies the
// day rules, the booking window and the gap rule against booked.
func (e *Engine) ValidateBooking(date, clock string, booked []string) error {
	if _, err := e.CheckDate(date); err != nil {
		return err
	}

	start, err := timeparse.ClockMinutes(clock)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	if !e.grid.Contains(start) {
		return ErrTimeOutOfWindow
	}

	bookedMinutes := parseBooked(booked)
	for _, b := range bookedMinutes {
		if b == start {
			return ErrTimeSlotTaken
		}
	}
	for _, b := range bookedMinutes {
		if Conflicts(start, b, e.duration, e.gap) {
			return ErrInsufficientGap
		}
	}
	return nil
}

// ForRange evaluates every day from..to inclusive using the same grid as the
// single-day path.
func (e *Engine) ForRange(from, to string, bookedByDate map[string][]string) ([]Availability, error) {
	start, err := timeparse.ParseCanonicalDate(from, e.loc)
	if err != nil {
		return nil, &DateError{Date: from, Reason: ReasonInvalidDate, kind: ErrInvalidDateFormat}
	}
	end, err := timeparse.ParseCanonicalDate(to, e.loc)
	if err != nil {
		return nil, &DateError{Date: to, Reason: ReasonInvalidDate, kind: ErrInvalidDateFormat}
	}
	if end.Before(start) {
		start, end = end, start
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return nil, ErrRangeTooLong
	}

	var out []Availability
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := timeparse.FormatCanonicalDate(day)
		out = append(out, e.Availability(key, bookedByDate[key]))
	}
	return out, nil
}

func (e *Engine) blocked(start int, booked []int) bool {
	for _, b := range booked {
		if b == start || Conflicts(start, b, e.duration, e.gap) {
			return true
		}
	}
	return false
}

func parseBooked(booked []string) []int {
	out := make([]int, 0, len(booked))
	for _, raw := range booked {
		m, err := timeparse.ClockMinutes(raw)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
