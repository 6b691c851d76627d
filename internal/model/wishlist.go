package model

import "time"

// Priority is the closed wish list priority enum. High sorts before
// medium, medium before low.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort position of the priority, most important first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ValidPriority reports whether p is one of the three priority values.
func ValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type WishListItem struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Name      string    `json:"name"`
	Occasion  string    `json:"occasion"`
	Priority  Priority  `json:"priority"`
	OwnerID   string    `json:"owner_id"`
	Link      string    `json:"link,omitempty"`
	Image     string    `json:"image,omitempty"`
	Comments  string    `json:"comments,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
