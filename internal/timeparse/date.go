package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalDateLayout is the wire format for calendar dates.
const CanonicalDateLayout = "2006-01-02"

var (
	canonicalDateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dayTokenRE      = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?,?$`)
	yearRE          = regexp.MustCompile(`^\d{4}$`)
)

var monthNames = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// DateResult is the outcome of resolving a spoken date phrase.
type DateResult struct {
	ParsedDate    time.Time `json:"parsed_date"`
	FormattedDate string    `json:"formatted_date"`
	Year          string    `json:"year"`
}

// ParseDatePhrase resolves "<month> <day>[st|nd|rd|th]" plus an optional
// explicit year into a calendar date in now's location.
//
// Without an explicit year the current year is assumed and, when that date has
// already passed, the next year's occurrence is used instead. An explicit year
// is always honored literally.
func ParseDatePhrase(phrase, year string, now time.Time) (DateResult, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))
	if len(fields) < 2 {
		return DateResult{}, parseErr(ErrUnrecognizedMonth, phrase)
	}

	month, ok := monthNames[strings.TrimSuffix(fields[0], ",")]
	if !ok {
		return DateResult{}, parseErr(ErrUnrecognizedMonth, phrase)
	}

	m := dayTokenRE.FindStringSubmatch(fields[1])
	if m == nil {
		return DateResult{}, parseErr(ErrInvalidDay, phrase)
	}
	day, _ := strconv.Atoi(m[1])

	year = strings.TrimSpace(year)
	explicit := year != ""
	targetYear := now.Year()
	if explicit {
		if !yearRE.MatchString(year) {
			return DateResult{}, parseErr(ErrInvalidYear, year)
		}
		targetYear, _ = strconv.Atoi(year)
	}

	loc := now.Location()
	date := time.Date(targetYear, month, day, 0, 0, 0, 0, loc)
	if date.Month() != month || date.Day() != day {
		return DateResult{}, parseErr(ErrInvalidDay, phrase)
	}

	if !explicit && date.Before(StartOfDay(now)) {
		date = time.Date(targetYear+1, month, day, 0, 0, 0, 0, loc)
	}

	return DateResult{
		ParsedDate:    date,
		FormattedDate: FormatCanonicalDate(date),
		Year:          strconv.Itoa(date.Year()),
	}, nil
}

// FormatCanonicalDate renders t as YYYY-MM-DD.
func FormatCanonicalDate(t time.Time) string {
	return t.Format(CanonicalDateLayout)
}

// ParseCanonicalDate strictly parses a YYYY-MM-DD string at midnight in loc.
func ParseCanonicalDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if !canonicalDateRE.MatchString(s) {
		return time.Time{}, parseErr(ErrInvalidDate, s)
	}
	t, err := time.ParseInLocation(CanonicalDateLayout, s, loc)
	if err != nil {
		return time.Time{}, parseErr(ErrInvalidDate, s)
	}
	return t, nil
}

// StartOfDay truncates t to local midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
