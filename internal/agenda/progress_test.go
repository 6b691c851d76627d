package agenda

import (
	"testing"
	"time"

	"famly/internal/model"
)

func TestDayProgressCountsInvolvement(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []model.CalendarEvent{
		{Start: day.Add(9 * time.Hour), MemberIDs: []string{"mia"}, IsCompleted: true},
		{Start: day.Add(11 * time.Hour), MemberIDs: []string{"mia"}, IsCompleted: true},
		{Start: day.Add(13 * time.Hour), CreatedBy: "mia", IsCompleted: true},
		{Start: day.Add(15 * time.Hour), MemberIDs: []string{"mia"}},
		// Different member, same day — not counted.
		{Start: day.Add(16 * time.Hour), MemberIDs: []string{"leo"}, IsCompleted: true},
		// Same member, different day — not counted.
		{Start: day.AddDate(0, 0, 1), MemberIDs: []string{"mia"}},
	}

	p := DayProgress(events, "mia", day)
	if p.Total != 4 {
		t.Errorf("total = %d, want 4", p.Total)
	}
	if p.Completed != 3 {
		t.Errorf("completed = %d, want 3", p.Completed)
	}
	if p.Percentage != 75 {
		t.Errorf("percentage = %d, want 75", p.Percentage)
	}
}

func TestDayProgressNoEventsIsZero(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	p := DayProgress(nil, "mia", day)
	if p.Total != 0 || p.Completed != 0 || p.Percentage != 0 {
		t.Errorf("empty progress = %+v, want zeros", p)
	}
}

func TestDayProgressEmptyMemberIsZero(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []model.CalendarEvent{
		{Start: day.Add(9 * time.Hour), MemberIDs: []string{"mia"}, IsCompleted: true},
	}

	p := DayProgress(events, "", day)
	if p != (Progress{}) {
		t.Errorf("progress = %+v, want zero value", p)
	}
}

func TestDayProgressRounding(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []model.CalendarEvent{
		{Start: day.Add(9 * time.Hour), MemberIDs: []string{"m"}, IsCompleted: true},
		{Start: day.Add(10 * time.Hour), MemberIDs: []string{"m"}},
		{Start: day.Add(11 * time.Hour), MemberIDs: []string{"m"}},
	}

	p := DayProgress(events, "m", day)
	if p.Percentage != 33 {
		t.Errorf("percentage = %d, want 33", p.Percentage)
	}

	events[1].IsCompleted = true
	p = DayProgress(events, "m", day)
	if p.Percentage != 67 {
		t.Errorf("percentage = %d, want 67", p.Percentage)
	}
}

func TestDayProgressBounds(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []model.CalendarEvent
	for i := 0; i < 7; i++ {
		events = append(events, model.CalendarEvent{
			Start:       day.Add(time.Duration(i) * time.Hour),
			MemberIDs:   []string{"m"},
			IsCompleted: i%2 == 0,
		})
	}

	for n := 0; n <= len(events); n++ {
		p := DayProgress(events[:n], "m", day)
		if p.Percentage < 0 || p.Percentage > 100 {
			t.Errorf("n=%d: percentage %d out of bounds", n, p.Percentage)
		}
		if p.Total == 0 && p.Percentage != 0 {
			t.Errorf("n=%d: zero total must give zero percentage", n)
		}
	}
}
