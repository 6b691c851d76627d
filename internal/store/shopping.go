package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"famly/internal/apperr"
	"famly/internal/ident"
	"famly/internal/model"
)

type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

const shoppingCols = `id, family_id, name, urgency, needed_by, added_by, is_completed, link, image, comments, created_at, updated_at`

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var it model.ShoppingItem
	var neededBy sql.NullTime
	var completed int

	err := scanner.Scan(&it.ID, &it.FamilyID, &it.Name, &it.Urgency, &neededBy,
		&it.AddedBy, &completed, &it.Link, &it.Image, &it.Comments, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if neededBy.Valid {
		t := neededBy.Time
		it.NeededBy = &t
	}
	it.IsCompleted = completed != 0
	return &it, nil
}

func (s *ShoppingStore) Create(it model.ShoppingItem) (*model.ShoppingItem, error) {
	if strings.TrimSpace(it.Name) == "" {
		return nil, fmt.Errorf("%w: item name is required", apperr.ErrValidation)
	}
	if it.Urgency == "" {
		it.Urgency = model.UrgencyNormal
	}
	if !model.ValidUrgency(it.Urgency) {
		return nil, fmt.Errorf("%w: invalid urgency %q", apperr.ErrValidation, it.Urgency)
	}

	var neededBy any
	if it.NeededBy != nil {
		neededBy = it.NeededBy.UTC()
	}

	id := ident.NewID()
	_, err := s.db.Exec(
		`INSERT INTO shopping_items (id, family_id, name, urgency, needed_by, added_by, link, image, comments)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, it.FamilyID, it.Name, string(it.Urgency), neededBy, it.AddedBy, it.Link, it.Image, it.Comments,
	)
	if err != nil {
		return nil, fmt.Errorf("insert shopping item: %w", err)
	}
	return s.GetByID(id)
}

func (s *ShoppingStore) GetByID(id string) (*model.ShoppingItem, error) {
	row := s.db.QueryRow(`SELECT `+shoppingCols+` FROM shopping_items WHERE id = ?`, id)
	it, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return it, nil
}

// ListByFamily returns the family's shopping list sorted most pressing
// first: urgency rank, then needed-by date (items without one last),
// then creation time.
func (s *ShoppingStore) ListByFamily(familyID string) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(
		`SELECT `+shoppingCols+` FROM shopping_items WHERE family_id = ?`, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query shopping items: %w", err)
	}
	defer rows.Close()

	var items []model.ShoppingItem
	for rows.Next() {
		it, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Urgency.Rank() != b.Urgency.Rank() {
			return a.Urgency.Rank() < b.Urgency.Rank()
		}
		switch {
		case a.NeededBy != nil && b.NeededBy != nil:
			if !a.NeededBy.Equal(*b.NeededBy) {
				return a.NeededBy.Before(*b.NeededBy)
			}
		case a.NeededBy != nil:
			return true
		case b.NeededBy != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return items, nil
}

// ShoppingPatch carries a partial edit. Nil fields leave the stored
// values alone; ClearNeededBy drops the needed-by date entirely.
type ShoppingPatch struct {
	Name          *string
	Urgency       *model.Urgency
	NeededBy      *time.Time
	ClearNeededBy bool
	Link          *string
	Image         *string
	Comments      *string
}

func (s *ShoppingStore) Update(id string, patch ShoppingPatch) (*model.ShoppingItem, error) {
	var sets []string
	var args []any

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: item name is required", apperr.ErrValidation)
		}
		sets, args = append(sets, "name = ?"), append(args, *patch.Name)
	}
	if patch.Urgency != nil {
		if !model.ValidUrgency(*patch.Urgency) {
			return nil, fmt.Errorf("%w: invalid urgency %q", apperr.ErrValidation, *patch.Urgency)
		}
		sets, args = append(sets, "urgency = ?"), append(args, string(*patch.Urgency))
	}
	if patch.ClearNeededBy {
		sets = append(sets, "needed_by = NULL")
	} else if patch.NeededBy != nil {
		sets, args = append(sets, "needed_by = ?"), append(args, patch.NeededBy.UTC())
	}
	if patch.Link != nil {
		sets, args = append(sets, "link = ?"), append(args, *patch.Link)
	}
	if patch.Image != nil {
		sets, args = append(sets, "image = ?"), append(args, *patch.Image)
	}
	if patch.Comments != nil {
		sets, args = append(sets, "comments = ?"), append(args, *patch.Comments)
	}

	if len(sets) == 0 {
		it, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, fmt.Errorf("%w: shopping item %s", apperr.ErrNotFound, id)
		}
		return it, nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	res, err := s.db.Exec(
		`UPDATE shopping_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update shopping item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: shopping item %s", apperr.ErrNotFound, id)
	}
	return s.GetByID(id)
}

// ToggleCompleted flips the item's bought flag.
func (s *ShoppingStore) ToggleCompleted(id string) (*model.ShoppingItem, error) {
	res, err := s.db.Exec(
		`UPDATE shopping_items SET is_completed = 1 - is_completed, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle shopping item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: shopping item %s", apperr.ErrNotFound, id)
	}
	return s.GetByID(id)
}

func (s *ShoppingStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM shopping_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: shopping item %s", apperr.ErrNotFound, id)
	}
	return nil
}

// ClearCompleted removes every bought item from the family's list and
// returns how many were removed.
func (s *ShoppingStore) ClearCompleted(familyID string) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM shopping_items WHERE family_id = ? AND is_completed = 1`, familyID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear completed items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
