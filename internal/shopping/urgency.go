// Package shopping holds list-side helpers that don't touch storage.
package shopping

import (
	"strings"
	"time"

	"famly/internal/model"
)

// SuggestUrgency proposes an urgency for a new shopping item from its
// name and needed-by date. It performs case-insensitive matching:
// exact match first, then substring match, then the date heuristic.
// Falls back to normal when nothing signals otherwise. The caller may
// always override the suggestion.
func SuggestUrgency(itemName string, neededBy *time.Time, now time.Time) model.Urgency {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return model.UrgencyNormal
	}

	// Phase 1: exact match
	if u, ok := exactMatch[name]; ok {
		return u
	}

	// Phase 2: substring match (ordered more-specific first)
	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.urgency
		}
	}

	// Phase 3: a close needed-by date raises the stakes on its own.
	if neededBy != nil {
		until := neededBy.Sub(now)
		switch {
		case until < 24*time.Hour:
			return model.UrgencyCritical
		case until < 72*time.Hour:
			return model.UrgencyUrgent
		}
	}

	return model.UrgencyNormal
}

var exactMatch = map[string]model.Urgency{
	// Health essentials run out badly.
	"medicine":    model.UrgencyCritical,
	"medication":  model.UrgencyCritical,
	"inhaler":     model.UrgencyCritical,
	"epipen":      model.UrgencyCritical,
	"insulin":     model.UrgencyCritical,
	"thermometer": model.UrgencyUrgent,
	"bandages":    model.UrgencyUrgent,
	"band-aids":   model.UrgencyUrgent,

	// Baby supplies can't wait for the weekly run.
	"diapers": model.UrgencyCritical,
	"formula": model.UrgencyCritical,
	"wipes":   model.UrgencyUrgent,

	// Daily staples people notice immediately.
	"toilet paper": model.UrgencyUrgent,
	"milk":         model.UrgencyUrgent,
	"bread":        model.UrgencyUrgent,
	"eggs":         model.UrgencyUrgent,
	"coffee":       model.UrgencyUrgent,
	"dog food":     model.UrgencyUrgent,
	"cat food":     model.UrgencyUrgent,
	"baby food":    model.UrgencyUrgent,
}

var substringMatches = []struct {
	keyword string
	urgency model.Urgency
}{
	{"prescription", model.UrgencyCritical},
	{"medicine", model.UrgencyCritical},
	{"diaper", model.UrgencyCritical},
	{"formula", model.UrgencyCritical},
	{"toilet paper", model.UrgencyUrgent},
	{"paper towel", model.UrgencyUrgent},
	{"pet food", model.UrgencyUrgent},
	{"detergent", model.UrgencyUrgent},
	{"batteries", model.UrgencyUrgent},
	{"lunch", model.UrgencyUrgent},
}
