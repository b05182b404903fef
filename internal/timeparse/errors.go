// Package timeparse turns the date and time phrases people type into the
// canonical wire forms used across the service: "YYYY-MM-DD" and "h:mm AM/PM".
package timeparse

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedMonth is returned when a date phrase has no known month name.
	ErrUnrecognizedMonth = errors.New("unrecognized month")
	// ErrInvalidDay is returned when the day token is missing, non-numeric or out of range.
	ErrInvalidDay = errors.New("invalid day")
	// ErrInvalidYear is returned when an explicit year is not a 4 digit number.
	ErrInvalidYear = errors.New("invalid year")
	// ErrInvalidTime is returned when a time string is neither 12-hour nor military form.
	ErrInvalidTime = errors.New("invalid time")
	// ErrInvalidDate is returned when a canonical date string does not parse.
	ErrInvalidDate = errors.New("invalid date format")
)

// ParseError carries the offending input alongside the failure kind so chat
// flows can echo it back in a clarifying question.
type ParseError struct {
	Kind  error
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timeparse: %v: %q", e.Kind, e.Input)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func parseErr(kind error, input string) error {
	return &ParseError{Kind: kind, Input: input}
}
