// Package ics serializes calendar events to and from the iCalendar
// interchange format. Export writes a complete VCALENDAR envelope;
// Import is best-effort, skipping blocks that are missing required
// fields instead of failing the whole file.
package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"famly/internal/apperr"
	"famly/internal/model"
)

const productID = "-//famly//Calendar//EN"

// defaultDuration is assumed when an imported block has no DTEND.
const defaultDuration = time.Hour

// Export renders the events as an iCalendar document. Timestamps are
// normalized to UTC at second precision.
func Export(events []model.CalendarEvent) []byte {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")

	now := time.Now().UTC()
	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now)
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
	}

	return []byte(cal.Serialize())
}

// ImportedEvent is a partial calendar event recovered from interchange
// data. Identifier, attendees, and voice notes are assigned by the
// caller; the codec only carries what the format holds.
type ImportedEvent struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Category    model.EventCategory
}

// Import parses interchange data into partial events. Blocks without a
// summary or a parseable start are skipped. A block without an end gets
// start plus one hour. Data that is not an iCalendar document at all
// returns ErrMalformedInterchange.
func Import(data []byte) ([]ImportedEvent, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedInterchange, err)
	}

	var out []ImportedEvent
	for _, ve := range cal.Events() {
		summary := propValue(ve, ical.ComponentPropertySummary)
		if strings.TrimSpace(summary) == "" {
			continue
		}

		start, ok := parseStamp(propValue(ve, ical.ComponentPropertyDtStart))
		if !ok {
			continue
		}

		end, ok := parseStamp(propValue(ve, ical.ComponentPropertyDtEnd))
		if !ok {
			end = start.Add(defaultDuration)
		}

		out = append(out, ImportedEvent{
			Title:       strings.TrimSpace(summary),
			Description: strings.TrimSpace(propValue(ve, ical.ComponentPropertyDescription)),
			Location:    strings.TrimSpace(propValue(ve, ical.ComponentPropertyLocation)),
			Start:       start,
			End:         end,
			Category:    model.CategoryOther,
		})
	}
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	p := ve.GetProperty(name)
	if p == nil {
		return ""
	}
	return p.Value
}

// parseStamp handles the three timestamp shapes found in the wild:
// UTC-suffixed date-times, floating (local) date-times, and bare dates
// for all-day values.
func parseStamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse("20060102T150405Z", v); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102T150405", v, time.Local); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102", v, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}
