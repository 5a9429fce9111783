package domain

import (
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-day prefix of every timeline date string.
	DateLayout = "2006-01-02"
	// ClockLayout is the time-of-day accepted by time edits.
	ClockLayout = "15:04"
)

// DatePart returns the yyyy-MM-dd prefix of a "yyyy-MM-dd HH:mm[:ss]" string,
// or "" when the prefix is not a valid calendar date.
func DatePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return ""
	}
	d := s[:len(DateLayout)]
	if _, err := time.Parse(DateLayout, d); err != nil {
		return ""
	}
	return d
}

// TimePart returns whatever follows the date prefix, trimmed.
func TimePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= len(DateLayout) {
		return ""
	}
	return strings.TrimSpace(s[len(DateLayout):])
}

// ComposeDateTime joins a yyyy-MM-dd date and an HH:mm clock.
func ComposeDateTime(date, clock string) string {
	return date + " " + clock
}

// ValidClock reports whether s is an H:mm or HH:mm time of day.
func ValidClock(s string) bool {
	_, ok := NormalizeClock(s)
	return ok
}

// NormalizeClock parses an H:mm or HH:mm time of day and returns it in the
// zero-padded HH:mm form, so that clocks compare correctly as strings.
func NormalizeClock(s string) (string, bool) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(ClockLayout), true
}

// NormalizeDateTime rewrites "yyyy-MM-dd H:mm" as "yyyy-MM-dd HH:mm".
func NormalizeDateTime(s string) (string, bool) {
	d := DatePart(s)
	if d == "" {
		return "", false
	}
	c, ok := NormalizeClock(TimePart(s))
	if !ok {
		return "", false
	}
	return ComposeDateTime(d, c), true
}

// SortKey returns a form of a timeline date string that orders
// chronologically under string comparison. Values carrying seconds or an
// unparseable clock are returned trimmed and unchanged.
func SortKey(s string) string {
	if n, ok := NormalizeDateTime(s); ok {
		return n
	}
	s = strings.TrimSpace(s)
	d, c := DatePart(s), TimePart(s)
	if d == "" || len(c) < 2 || c[1] != ':' {
		return s
	}
	return d + " 0" + c
}

// DayRange lists every calendar day from first to last inclusive. Both bounds
// are yyyy-MM-dd strings; arithmetic runs in UTC so no DST shift can skip or
// repeat a day.
func DayRange(first, last string) []string {
	from, err := time.Parse(DateLayout, first)
	if err != nil {
		return nil
	}
	to, err := time.Parse(DateLayout, last)
	if err != nil || to.Before(from) {
		return nil
	}
	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}
