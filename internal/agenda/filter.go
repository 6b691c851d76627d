// Package agenda implements the calendar's read-side logic: multi-field
// event filtering and per-day completion aggregates. Both operations are
// pure; they never touch the store.
package agenda

import (
	"strings"
	"time"

	"famly/internal/ident"
	"famly/internal/model"
)

// Query is a transient multi-field event filter. Zero-value fields are
// ignored; set fields are AND-composed.
type Query struct {
	// Keyword matches the title, category, description, or location,
	// case-insensitively. Any one field matching suffices.
	Keyword string

	// Date keeps only events whose start falls on this calendar day.
	Date *time.Time

	// Time matches against the formatted start time of day, so queries
	// like "10:00" or "pm" both work.
	Time string

	// MemberID keeps only events listing this member as an attendee.
	MemberID string
}

// IsZero reports whether no filter fields are set.
func (q Query) IsZero() bool {
	return q.Keyword == "" && q.Date == nil && q.Time == "" && q.MemberID == ""
}

// Filter returns the events matching every set field of q, preserving
// input order. Callers sort by start time separately when a
// chronological view is needed.
func Filter(events []model.CalendarEvent, q Query) []model.CalendarEvent {
	if q.IsZero() {
		return events
	}

	keyword := strings.ToLower(q.Keyword)
	timeQuery := strings.ToLower(q.Time)

	var out []model.CalendarEvent
	for _, e := range events {
		if keyword != "" && !matchesKeyword(&e, keyword) {
			continue
		}
		if q.Date != nil && !ident.SameDay(e.Start, *q.Date) {
			continue
		}
		if timeQuery != "" &&
			!strings.Contains(strings.ToLower(ident.FormatTime(e.Start)), timeQuery) {
			continue
		}
		if q.MemberID != "" && !containsID(e.MemberIDs, q.MemberID) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesKeyword(e *model.CalendarEvent, keyword string) bool {
	return strings.Contains(strings.ToLower(e.Title), keyword) ||
		strings.Contains(strings.ToLower(string(e.Category)), keyword) ||
		strings.Contains(strings.ToLower(e.Description), keyword) ||
		strings.Contains(strings.ToLower(e.Location), keyword)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
