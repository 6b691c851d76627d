package agenda

import (
	"math"
	"time"

	"famly/internal/ident"
	"famly/internal/model"
)

// Progress is the per-day completion aggregate behind the dashboard
// progress bar. It is recomputed on every render, never cached.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// DayProgress computes the completion aggregate for one member on one
// calendar day. An event counts when the member created it or is listed
// as an attendee. Percentage is 0 when the member has no events that
// day, so there is no division-by-zero case.
func DayProgress(events []model.CalendarEvent, memberID string, day time.Time) Progress {
	if memberID == "" {
		return Progress{}
	}

	var p Progress
	for _, e := range events {
		if !ident.SameDay(e.Start, day) {
			continue
		}
		if !e.Involves(memberID) {
			continue
		}
		p.Total++
		if e.IsCompleted {
			p.Completed++
		}
	}

	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}
