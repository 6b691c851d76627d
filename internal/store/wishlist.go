package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"famly/internal/apperr"
	"famly/internal/ident"
	"famly/internal/model"
)

type WishListStore struct {
	db *sql.DB
}

func NewWishListStore(db *sql.DB) *WishListStore {
	return &WishListStore{db: db}
}

const wishCols = `id, family_id, name, occasion, priority, owner_id, link, image, comments, created_at, updated_at`

func scanWishItem(scanner interface{ Scan(...any) error }) (*model.WishListItem, error) {
	var it model.WishListItem
	err := scanner.Scan(&it.ID, &it.FamilyID, &it.Name, &it.Occasion, &it.Priority,
		&it.OwnerID, &it.Link, &it.Image, &it.Comments, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *WishListStore) Create(it model.WishListItem) (*model.WishListItem, error) {
	if strings.TrimSpace(it.Name) == "" {
		return nil, fmt.Errorf("%w: item name is required", apperr.ErrValidation)
	}
	if it.Priority == "" {
		it.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(it.Priority) {
		return nil, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, it.Priority)
	}
	if it.Occasion == "" {
		it.Occasion = "General"
	}

	id := ident.NewID()
	_, err := s.db.Exec(
		`INSERT INTO wish_list_items (id, family_id, name, occasion, priority, owner_id, link, image, comments)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, it.FamilyID, it.Name, it.Occasion, string(it.Priority), it.OwnerID, it.Link, it.Image, it.Comments,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wish list item: %w", err)
	}
	return s.GetByID(id)
}

func (s *WishListStore) GetByID(id string) (*model.WishListItem, error) {
	row := s.db.QueryRow(`SELECT `+wishCols+` FROM wish_list_items WHERE id = ?`, id)
	it, err := scanWishItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wish list item: %w", err)
	}
	return it, nil
}

// ListByFamily returns the family's wish list sorted by priority, most
// important first, then by creation time.
func (s *WishListStore) ListByFamily(familyID string) ([]model.WishListItem, error) {
	rows, err := s.db.Query(
		`SELECT `+wishCols+` FROM wish_list_items WHERE family_id = ?`, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query wish list items: %w", err)
	}
	defer rows.Close()

	var items []model.WishListItem
	for rows.Next() {
		it, err := scanWishItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wish list item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return items, nil
}

// WishPatch carries a partial edit. Nil fields leave the stored values
// alone.
type WishPatch struct {
	Name     *string
	Occasion *string
	Priority *model.Priority
	Link     *string
	Image    *string
	Comments *string
}

func (s *WishListStore) Update(id string, patch WishPatch) (*model.WishListItem, error) {
	var sets []string
	var args []any

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: item name is required", apperr.ErrValidation)
		}
		sets, args = append(sets, "name = ?"), append(args, *patch.Name)
	}
	if patch.Occasion != nil {
		sets, args = append(sets, "occasion = ?"), append(args, *patch.Occasion)
	}
	if patch.Priority != nil {
		if !model.ValidPriority(*patch.Priority) {
			return nil, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, *patch.Priority)
		}
		sets, args = append(sets, "priority = ?"), append(args, string(*patch.Priority))
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
			return nil, fmt.Errorf("%w: wish list item %s", apperr.ErrNotFound, id)
		}
		return it, nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	res, err := s.db.Exec(
		`UPDATE wish_list_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update wish list item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: wish list item %s", apperr.ErrNotFound, id)
	}
	return s.GetByID(id)
}

func (s *WishListStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM wish_list_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete wish list item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: wish list item %s", apperr.ErrNotFound, id)
	}
	return nil
}
