package store

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"famly/internal/apperr"
	"famly/internal/ident"
	"famly/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, family_id, name, avatar, color, is_admin, points, pin IS NOT NULL, sort_order, created_at, updated_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var isAdmin, hasPIN int
	var sortOrder int

	err := scanner.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Avatar, &m.Color,
		&isAdmin, &m.Points, &hasPIN, &sortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	m.IsAdmin = isAdmin != 0
	m.HasPIN = hasPIN != 0
	return &m, nil
}

func (s *MemberStore) Create(familyID, name, avatar, color string, isAdmin bool) (*model.Member, error) {
	if !model.ValidThemeColor(color) {
		color = model.ThemeColors[0]
	}

	var maxOrder int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(sort_order), -1) FROM members WHERE family_id = ?`, familyID,
	).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	var admin int
	if isAdmin {
		admin = 1
	}

	id := ident.NewID()
	_, err = s.db.Exec(
		`INSERT INTO members (id, family_id, name, avatar, color, is_admin, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, familyID, name, avatar, color, admin, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	return s.GetByID(id)
}

func (s *MemberStore) GetByID(id string) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListByFamily returns the family roster in join order. The name
// resolver's fallback depends on this ordering being stable.
func (s *MemberStore) ListByFamily(familyID string) ([]model.Member, error) {
	rows, err := s.db.Query(
		`SELECT `+memberCols+` FROM members WHERE family_id = ? ORDER BY sort_order`, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) Update(id, name, avatar, color string, isAdmin bool) (*model.Member, error) {
	if !model.ValidThemeColor(color) {
		return nil, fmt.Errorf("%w: invalid theme color %q", apperr.ErrValidation, color)
	}

	var admin int
	if isAdmin {
		admin = 1
	}

	res, err := s.db.Exec(
		`UPDATE members SET name = ?, avatar = ?, color = ?, is_admin = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, avatar, color, admin, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: member %s", apperr.ErrNotFound, id)
	}
	return s.GetByID(id)
}

// AddPoints credits points to the member's running total. Point awards
// are additive only; nothing in the product ever subtracts.
func (s *MemberStore) AddPoints(id string, points int) error {
	res, err := s.db.Exec(
		`UPDATE members SET points = points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		points, id,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: member %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (s *MemberStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: member %s", apperr.ErrNotFound, id)
	}
	return nil
}

// SetPIN hashes and stores a 4+ digit PIN for the member.
func (s *MemberStore) SetPIN(id, pin string) error {
	if len(pin) < 4 {
		return fmt.Errorf("%w: PIN must be at least 4 digits", apperr.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE members SET pin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(hash), id,
	)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: member %s", apperr.ErrNotFound, id)
	}
	return nil
}

// VerifyPIN checks the given PIN against the stored hash. Members with
// no PIN verify trivially.
func (s *MemberStore) VerifyPIN(id, pin string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT pin FROM members WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: member %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("get pin: %w", err)
	}

	if !hash.Valid {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(pin)) == nil, nil
}

func (s *MemberStore) ClearPIN(id string) error {
	res, err := s.db.Exec(
		`UPDATE members SET pin = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: member %s", apperr.ErrNotFound, id)
	}
	return nil
}
