package model

import (
	"strings"
	"time"
)

// EventCategory is the closed set of calendar event categories.
type EventCategory string

const (
	CategoryFamily EventCategory = "Family"
	CategoryWork   EventCategory = "Work"
	CategorySchool EventCategory = "School"
	CategoryFun    EventCategory = "Fun"
	CategoryChore  EventCategory = "Chore"
	CategoryHealth EventCategory = "Health"
	CategoryOther  EventCategory = "Other"
)

// Categories lists every valid EventCategory.
var Categories = []EventCategory{
	CategoryFamily, CategoryWork, CategorySchool, CategoryFun,
	CategoryChore, CategoryHealth, CategoryOther,
}

// ParseCategory maps a free-text category to the closed enum,
// case-insensitively. Unknown values fall back to fallback.
func ParseCategory(s string, fallback EventCategory) EventCategory {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c
		}
	}
	return fallback
}

type CalendarEvent struct {
	ID          string        `json:"id"`
	FamilyID    string        `json:"family_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Category    EventCategory `json:"category"`
	MemberIDs   []string      `json:"member_ids"`
	CreatedBy   string        `json:"created_by,omitempty"`
	VoiceNotes  []VoiceNote   `json:"voice_notes,omitempty"`
	IsCompleted bool          `json:"is_completed"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Involves reports whether the member created the event or is an attendee.
func (e *CalendarEvent) Involves(memberID string) bool {
	if memberID == "" {
		return false
	}
	if e.CreatedBy == memberID {
		return true
	}
	for _, id := range e.MemberIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

// EventPatch is a partial event update. Nil fields are left untouched;
// a nil MemberIDs slice keeps the existing attendee list, while an empty
// non-nil slice clears it.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	Category    *EventCategory
	MemberIDs   []string
	IsCompleted *bool
}

// IsZero reports whether the patch changes nothing.
func (p EventPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && p.Category == nil &&
		p.MemberIDs == nil && p.IsCompleted == nil
}

// VoiceNote is a short audio attachment recorded against an event.
type VoiceNote struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Data      []byte    `json:"data"`
	Duration  float64   `json:"duration"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}
