package store

import (
	"database/sql"
	"fmt"

	"famly/internal/apperr"
	"famly/internal/ident"
	"famly/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, family_id, member_id, endpoint, p256dh_key, auth_key, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.FamilyID, &sub.MemberID, &sub.Endpoint,
		&sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscribe registers a browser push subscription. Endpoints are unique
// per browser, so re-subscribing the same endpoint rebinds it to the
// given member instead of erroring.
func (s *PushStore) Subscribe(familyID, memberID, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, fmt.Errorf("%w: subscription endpoint and keys are required", apperr.ErrValidation)
	}

	id := ident.NewID()
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (id, family_id, member_id, endpoint, p256dh_key, auth_key)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   family_id = excluded.family_id,
		   member_id = excluded.member_id,
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key`,
		id, familyID, memberID, endpoint, p256dh, auth,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	if _, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (s *PushStore) ListByFamily(familyID string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+pushCols+` FROM push_subscriptions WHERE family_id = ?`, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListByMembers returns the subscriptions belonging to any of the given
// members. Reminder delivery targets an event's involved members only.
func (s *PushStore) ListByMembers(memberIDs []string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	seen := make(map[string]bool)
	for _, memberID := range memberIDs {
		if memberID == "" || seen[memberID] {
			continue
		}
		seen[memberID] = true

		rows, err := s.db.Query(
			`SELECT `+pushCols+` FROM push_subscriptions WHERE member_id = ?`, memberID,
		)
		if err != nil {
			return nil, fmt.Errorf("query subscriptions: %w", err)
		}
		memberSubs, err := collectSubscriptions(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		subs = append(subs, memberSubs...)
	}
	return subs, nil
}

func collectSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// WasSent reports whether a notification with the given ref was already
// delivered to the family. Refs dedupe reminders across scheduler ticks.
func (s *PushStore) WasSent(familyID, refID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM push_sent WHERE family_id = ? AND ref_id = ?`, familyID, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return count > 0, nil
}

func (s *PushStore) RecordSent(familyID, refID string) error {
	_, err := s.db.Exec(
		`INSERT INTO push_sent (family_id, ref_id) VALUES (?, ?)
		 ON CONFLICT(family_id, ref_id) DO NOTHING`,
		familyID, refID,
	)
	if err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}
