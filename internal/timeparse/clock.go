package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	militaryRE   = regexp.MustCompile(`^(\d{1,2}):?(\d{2})?\s*hours?$`)
	twelveHourRE = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
	punctRE      = regexp.MustCompile(`[.,!?]`)
)

// NormalizeTime converts "1900 hours", "19:00 hours", "5 pm", "5:30 p.m." and
// similar into the canonical "h:mm AM/PM" form.
func NormalizeTime(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", parseErr(ErrInvalidTime, raw)
	}

	if m := militaryRE.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 23 || minute > 59 {
			return "", parseErr(ErrInvalidTime, raw)
		}
		return FormatClock(hour*60 + minute), nil
	}

	s = punctRE.ReplaceAllString(s, "")
	m := twelveHourRE.FindStringSubmatch(s)
	if m == nil {
		return "", parseErr(ErrInvalidTime, raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return "", parseErr(ErrInvalidTime, raw)
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, strings.ToUpper(m[3])), nil
}

// ClockMinutes returns minutes since midnight for any time NormalizeTime accepts.
func ClockMinutes(raw string) (int, error) {
	canonical, err := NormalizeTime(raw)
	if err != nil {
		return 0, err
	}
	m := twelveHourRE.FindStringSubmatch(strings.ToLower(canonical))
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	hour %= 12
	if m[3] == "pm" {
		hour += 12
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "h:mm AM/PM".
func FormatClock(minutes int) string {
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	hour, minute := minutes/60, minutes%60
	meridiem := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		meridiem = "PM"
	case hour > 12:
		hour -= 12
		meridiem = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, meridiem)
}
