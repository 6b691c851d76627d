package model

import "time"

// ThemeColors is the closed set of display colors a member may pick.
var ThemeColors = []string{
	"indigo", "blue", "sky", "cyan", "teal", "emerald",
	"amber", "rose", "pink", "purple", "violet",
}

// ValidThemeColor reports whether color is one of ThemeColors.
func ValidThemeColor(color string) bool {
	for _, c := range ThemeColors {
		if c == color {
			return true
		}
	}
	return false
}

type Member struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Color     string    `json:"color"`
	IsAdmin   bool      `json:"is_admin"`
	Points    int       `json:"points"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
