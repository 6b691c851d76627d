package model

import "time"

// Urgency is the closed shopping urgency enum. Critical sorts before
// urgent, urgent before normal.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyCritical Urgency = "critical"
)

// Rank returns the sort position of the urgency, most pressing first.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyUrgent:
		return 1
	default:
		return 2
	}
}

// ValidUrgency reports whether u is one of the three urgency values.
func ValidUrgency(u Urgency) bool {
	return u == UrgencyNormal || u == UrgencyUrgent || u == UrgencyCritical
}

type ShoppingItem struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	Name        string     `json:"name"`
	Urgency     Urgency    `json:"urgency"`
	NeededBy    *time.Time `json:"needed_by,omitempty"`
	AddedBy     string     `json:"added_by"`
	IsCompleted bool       `json:"is_completed"`
	Link        string     `json:"link,omitempty"`
	Image       string     `json:"image,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
