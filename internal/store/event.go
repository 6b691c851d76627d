package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"famly/internal/apperr"
	"famly/internal/ident"
	"famly/internal/model"
)

// CompletionPoints is credited to an involved member each time they
// take an event from incomplete to complete. Awards are never revoked
// when an event is reopened; that asymmetry is a product decision.
const CompletionPoints = 5

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, family_id, title, description, location, start_time, end_time, category, created_by, is_completed, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var createdBy sql.NullString
	var completed int

	err := scanner.Scan(&e.ID, &e.FamilyID, &e.Title, &e.Description, &e.Location,
		&e.Start, &e.End, &e.Category, &createdBy, &completed, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.CreatedBy = createdBy.String
	e.IsCompleted = completed != 0
	return &e, nil
}

// Create inserts the event and its attendee list in one transaction.
// The event must already carry an id (callers generate one via ident).
func (s *EventStore) Create(e model.CalendarEvent) (*model.CalendarEvent, error) {
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("%w: event title is required", apperr.ErrValidation)
	}
	if e.ID == "" {
		e.ID = ident.NewID()
	}
	if e.Category == "" {
		e.Category = model.CategoryOther
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var createdBy sql.NullString
	if e.CreatedBy != "" {
		createdBy = sql.NullString{String: e.CreatedBy, Valid: true}
	}

	_, err = tx.Exec(
		`INSERT INTO calendar_events (id, family_id, title, description, location, start_time, end_time, category, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FamilyID, e.Title, e.Description, e.Location,
		e.Start.UTC(), e.End.UTC(), string(e.Category), createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := replaceAttendees(tx, e.ID, e.MemberIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(e.ID)
}

func replaceAttendees(tx *sql.Tx, eventID string, memberIDs []string) error {
	if _, err := tx.Exec(`DELETE FROM event_attendees WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("clear attendees: %w", err)
	}
	pos := 0
	seen := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.Exec(
			`INSERT INTO event_attendees (event_id, member_id, position) VALUES (?, ?, ?)`,
			eventID, id, pos,
		); err != nil {
			return fmt.Errorf("insert attendee: %w", err)
		}
		pos++
	}
	return nil
}

func (s *EventStore) GetByID(id string) (*model.CalendarEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM calendar_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	if err := s.loadAttendees([]*model.CalendarEvent{e}); err != nil {
		return nil, err
	}
	if err := s.loadVoiceNotes(e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListByFamily returns all of a family's events ordered by start time.
// Attendee lists are loaded; voice note payloads are not (fetch the
// single event when audio is needed).
func (s *EventStore) ListByFamily(familyID string) ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM calendar_events WHERE family_id = ? ORDER BY start_time`, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAttendees(events); err != nil {
		return nil, err
	}

	out := make([]model.CalendarEvent, len(events))
	for i, e := range events {
		out[i] = *e
	}
	return out, nil
}

// ListStartingBetween returns events across all families with a start
// in [from, to), for the reminder scheduler.
func (s *EventStore) ListStartingBetween(from, to time.Time) ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM calendar_events
		 WHERE start_time >= ? AND start_time < ? ORDER BY start_time`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query upcoming events: %w", err)
	}
	defer rows.Close()

	var events []*model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAttendees(events); err != nil {
		return nil, err
	}

	out := make([]model.CalendarEvent, len(events))
	for i, e := range events {
		out[i] = *e
	}
	return out, nil
}

func (s *EventStore) loadAttendees(events []*model.CalendarEvent) error {
	byID := make(map[string]*model.CalendarEvent, len(events))
	for _, e := range events {
		e.MemberIDs = []string{}
		byID[e.ID] = e
	}
	if len(events) == 0 {
		return nil
	}

	rows, err := s.db.Query(
		`SELECT event_id, member_id FROM event_attendees ORDER BY event_id, position`,
	)
	if err != nil {
		return fmt.Errorf("query attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, memberID string
		if err := rows.Scan(&eventID, &memberID); err != nil {
			return fmt.Errorf("scan attendee: %w", err)
		}
		if e, ok := byID[eventID]; ok {
			e.MemberIDs = append(e.MemberIDs, memberID)
		}
	}
	return rows.Err()
}

func (s *EventStore) loadVoiceNotes(e *model.CalendarEvent) error {
	rows, err := s.db.Query(
		`SELECT id, event_id, data, duration, author_id, created_at
		 FROM voice_notes WHERE event_id = ? ORDER BY created_at, id`, e.ID,
	)
	if err != nil {
		return fmt.Errorf("query voice notes: %w", err)
	}
	defer rows.Close()

	e.VoiceNotes = []model.VoiceNote{}
	for rows.Next() {
		var n model.VoiceNote
		if err := rows.Scan(&n.ID, &n.EventID, &n.Data, &n.Duration, &n.AuthorID, &n.CreatedAt); err != nil {
			return fmt.Errorf("scan voice note: %w", err)
		}
		e.VoiceNotes = append(e.VoiceNotes, n)
	}
	return rows.Err()
}

// Update applies a partial patch. Nil patch fields leave the stored
// values alone, so an assistant UPDATE carrying only a title cannot
// wipe the rest of the event.
func (s *EventStore) Update(id string, patch model.EventPatch) (*model.CalendarEvent, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: event title is required", apperr.ErrValidation)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var sets []string
	var args []any
	if patch.Title != nil {
		sets, args = append(sets, "title = ?"), append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *patch.Description)
	}
	if patch.Location != nil {
		sets, args = append(sets, "location = ?"), append(args, *patch.Location)
	}
	if patch.Start != nil {
		sets, args = append(sets, "start_time = ?"), append(args, patch.Start.UTC())
	}
	if patch.End != nil {
		sets, args = append(sets, "end_time = ?"), append(args, patch.End.UTC())
	}
	if patch.Category != nil {
		sets, args = append(sets, "category = ?"), append(args, string(*patch.Category))
	}
	if patch.IsCompleted != nil {
		completed := 0
		if *patch.IsCompleted {
			completed = 1
		}
		sets, args = append(sets, "is_completed = ?"), append(args, completed)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
		args = append(args, id)
		res, err := tx.Exec(
			`UPDATE calendar_events SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
		)
		if err != nil {
			return nil, fmt.Errorf("update event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: event %s", apperr.ErrNotFound, id)
		}
	} else {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM calendar_events WHERE id = ?`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check event: %w", err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: event %s", apperr.ErrNotFound, id)
		}
	}

	if patch.MemberIDs != nil {
		if err := replaceAttendees(tx, id, patch.MemberIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: event %s", apperr.ErrNotFound, id)
	}
	return nil
}

// ToggleCompleted flips the event's completion flag on behalf of the
// given member. Only an involved member (creator or attendee) may
// toggle; the incomplete-to-complete transition credits CompletionPoints
// to that member, atomically with the flag change. The returned bool
// reports whether points were awarded.
func (s *EventStore) ToggleCompleted(eventID, memberID string) (*model.CalendarEvent, bool, error) {
	event, err := s.GetByID(eventID)
	if err != nil {
		return nil, false, err
	}
	if event == nil {
		return nil, false, fmt.Errorf("%w: event %s", apperr.ErrNotFound, eventID)
	}
	if !event.Involves(memberID) {
		return nil, false, fmt.Errorf("%w: member %s is not involved in event %s",
			apperr.ErrPermissionDenied, memberID, eventID)
	}

	completing := !event.IsCompleted

	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	completed := 0
	if completing {
		completed = 1
	}
	if _, err := tx.Exec(
		`UPDATE calendar_events SET is_completed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		completed, eventID,
	); err != nil {
		return nil, false, fmt.Errorf("toggle completion: %w", err)
	}

	if completing {
		if _, err := tx.Exec(
			`UPDATE members SET points = points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			CompletionPoints, memberID,
		); err != nil {
			return nil, false, fmt.Errorf("award points: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	event, err = s.GetByID(eventID)
	if err != nil {
		return nil, false, err
	}
	return event, completing, nil
}

// AddVoiceNote appends an audio attachment to the event.
func (s *EventStore) AddVoiceNote(eventID string, data []byte, duration float64, authorID string) (*model.VoiceNote, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: voice note payload is empty", apperr.ErrValidation)
	}

	event, err := s.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", apperr.ErrNotFound, eventID)
	}

	id := ident.NewID()
	if _, err := s.db.Exec(
		`INSERT INTO voice_notes (id, event_id, data, duration, author_id) VALUES (?, ?, ?, ?, ?)`,
		id, eventID, data, duration, authorID,
	); err != nil {
		return nil, fmt.Errorf("insert voice note: %w", err)
	}

	var n model.VoiceNote
	err = s.db.QueryRow(
		`SELECT id, event_id, data, duration, author_id, created_at FROM voice_notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.EventID, &n.Data, &n.Duration, &n.AuthorID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get voice note: %w", err)
	}
	return &n, nil
}
