package ics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"famly/internal/apperr"
	"famly/internal/model"
)

func TestExportContainsRequiredFields(t *testing.T) {
	events := []model.CalendarEvent{{
		ID:          "abc-123",
		Title:       "Piano Lesson",
		Description: "Bring the sheet music",
		Location:    "Music Academy",
		Start:       time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
	}}

	out := string(Export(events))

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"END:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:abc-123",
		"DTSTART:20240301T150000Z",
		"DTEND:20240301T160000Z",
		"SUMMARY:Piano Lesson",
		"LOCATION:Music Academy",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "DTSTAMP:") {
		t.Errorf("export missing DTSTAMP:\n%s", out)
	}
}

func TestExportOmitsEmptyOptionalFields(t *testing.T) {
	events := []model.CalendarEvent{{
		ID:    "e1",
		Title: "Dentist",
		Start: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	out := string(Export(events))
	if strings.Contains(out, "DESCRIPTION") {
		t.Error("empty description should not be exported")
	}
	if strings.Contains(out, "LOCATION") {
		t.Error("empty location should not be exported")
	}
}

func TestRoundTrip(t *testing.T) {
	events := []model.CalendarEvent{{
		ID:          "e1",
		Title:       "Soccer Practice",
		Description: "Bring shin guards and water bottle",
		Location:    "City Park Field 4",
		Start:       time.Date(2024, 3, 1, 16, 30, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
	}}

	imported, err := Import(Export(events))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d events, want 1", len(imported))
	}

	got := imported[0]
	want := events[0]
	if got.Title != want.Title {
		t.Errorf("title = %q, want %q", got.Title, want.Title)
	}
	if got.Description != want.Description {
		t.Errorf("description = %q, want %q", got.Description, want.Description)
	}
	if got.Location != want.Location {
		t.Errorf("location = %q, want %q", got.Location, want.Location)
	}
	if !got.Start.Equal(want.Start) {
		t.Errorf("start = %v, want %v", got.Start, want.Start)
	}
	if !got.End.Equal(want.End) {
		t.Errorf("end = %v, want %v", got.End, want.End)
	}
	if got.Category != model.CategoryOther {
		t.Errorf("category = %q, want Other", got.Category)
	}
}

func TestRoundTripNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	events := []model.CalendarEvent{{
		ID:    "e1",
		Title: "Call grandma",
		Start: time.Date(2024, 3, 1, 10, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 1, 11, 0, 0, 0, loc),
	}}

	imported, err := Import(Export(events))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d events, want 1", len(imported))
	}
	if !imported[0].Start.Equal(events[0].Start) {
		t.Errorf("start = %v, want instant %v", imported[0].Start, events[0].Start)
	}
}

const twoBlockCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//other app//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-1\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"DTSTART:20240301T100000Z\r\n" +
	"DTEND:20240301T110000Z\r\n" +
	"SUMMARY:Valid Event\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-2\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"SUMMARY:Missing Start\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportSkipsBlockWithoutStart(t *testing.T) {
	imported, err := Import([]byte(twoBlockCalendar))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d events, want 1", len(imported))
	}
	if imported[0].Title != "Valid Event" {
		t.Errorf("title = %q, want %q", imported[0].Title, "Valid Event")
	}
}

const noSummaryCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//other app//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-1\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"DTSTART:20240301T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportSkipsBlockWithoutSummary(t *testing.T) {
	imported, err := Import([]byte(noSummaryCalendar))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 0 {
		t.Fatalf("got %d events, want 0", len(imported))
	}
}

const noEndCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//other app//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-1\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"DTSTART:20240301T100000Z\r\n" +
	"SUMMARY:Open Ended\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportDefaultsEndToStartPlusHour(t *testing.T) {
	imported, err := Import([]byte(noEndCalendar))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d events, want 1", len(imported))
	}
	want := imported[0].Start.Add(time.Hour)
	if !imported[0].End.Equal(want) {
		t.Errorf("end = %v, want %v", imported[0].End, want)
	}
}

const allDayCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//other app//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-1\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240301\r\n" +
	"SUMMARY:Spring Break\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportAllDayValue(t *testing.T) {
	imported, err := Import([]byte(allDayCalendar))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d events, want 1", len(imported))
	}
	got := imported[0].Start
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 1 {
		t.Errorf("start = %v, want 2024-03-01", got)
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Errorf("all-day start should be midnight, got %v", got)
	}
}

const floatingCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//other app//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-1\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"DTSTART:20240301T140000\r\n" +
	"SUMMARY:Floating Time\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportFloatingTimeIsLocal(t *testing.T) {
	imported, err := Import([]byte(floatingCalendar))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d events, want 1", len(imported))
	}
	want := time.Date(2024, 3, 1, 14, 0, 0, 0, time.Local)
	if !imported[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", imported[0].Start, want)
	}
}

func TestImportGarbage(t *testing.T) {
	_, err := Import([]byte("this is not a calendar"))
	if !errors.Is(err, apperr.ErrMalformedInterchange) {
		t.Errorf("err = %v, want ErrMalformedInterchange", err)
	}
}
