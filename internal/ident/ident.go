// Package ident holds the small identifier and calendar-day helpers
// shared by the calendar, codec, and assistant packages.
package ident

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh stable identifier for a domain record.
func NewID() string {
	return uuid.NewString()
}

// SameDay reports whether a and b fall on the same calendar day.
// Instants are compared in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysInMonth enumerates every day of the given month as midnight instants.
func DaysInMonth(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	var days []time.Time
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// FormatTime renders the time of day the way the calendar displays it,
// e.g. "07:30 PM". Filter queries match against this string.
func FormatTime(t time.Time) string {
	return t.Format("03:04 PM")
}

// FormatDate renders a full human-readable date, e.g. "March 1, 2024".
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// DayName renders the short weekday name, e.g. "Mon".
func DayName(t time.Time) string {
	return t.Format("Mon")
}
