// Package roster resolves free-text member name fragments, as produced
// by chat and voice input, to stable member identifiers.
package roster

import (
	"fmt"
	"strings"

	"famly/internal/apperr"
	"famly/internal/model"
)

// ResolveNames maps each name fragment to the first member whose display
// name contains it, case-insensitively, in roster order. Fragments that
// match nobody are dropped. If nothing matched (or no fragments were
// given) the first roster member is returned, so an assignment is never
// empty — chat-originated commands are frequently under-specified and
// fail-soft beats refusing the whole command.
//
// An empty roster is a caller bug and returns ErrValidation.
func ResolveNames(names []string, members []model.Member) ([]string, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: empty member roster", apperr.ErrValidation)
	}

	var ids []string
	for _, name := range names {
		frag := strings.ToLower(strings.TrimSpace(name))
		if frag == "" {
			continue
		}
		for _, m := range members {
			if strings.Contains(strings.ToLower(m.Name), frag) {
				ids = append(ids, m.ID)
				break
			}
		}
	}

	if len(ids) == 0 {
		return []string{members[0].ID}, nil
	}
	return ids, nil
}
