package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/example/family-portal/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, title, description, location, category, color, image_url,
	start_at, end_at, all_day, recurrence, created_by_id, created_at, updated_at`

// CreateEvent stores a new series anchor together with its hidden-from set.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || event.CreatedByID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO events (` + eventColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		var recurrence sql.NullString
		if event.RecurrenceJSON != nil {
			recurrence = sql.NullString{String: *event.RecurrenceJSON, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, query,
			event.ID,
			event.Title,
			event.Description,
			event.Location,
			event.Category,
			event.Color,
			event.ImageURL,
			formatTime(event.Start),
			formatTimePtr(event.End),
			boolToInt(event.AllDay),
			recurrence,
			event.CreatedByID,
			formatTime(event.CreatedAt),
			formatTime(event.UpdatedAt),
		); err != nil {
			return mapError(err)
		}

		return insertHiddenFrom(ctx, tx, event.ID, event.HiddenFrom)
	})
}

// UpdateEvent rewrites the mutable fields of an anchor and replaces its
// hidden-from set in the same transaction.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE events
			SET title = ?, description = ?, location = ?, category = ?, color = ?,
				image_url = ?, start_at = ?, end_at = ?, all_day = ?, recurrence = ?,
				updated_at = ?
			WHERE id = ?
		`

		var recurrence sql.NullString
		if event.RecurrenceJSON != nil {
			recurrence = sql.NullString{String: *event.RecurrenceJSON, Valid: true}
		}

		result, err := tx.ExecContext(ctx, query,
			event.Title,
			event.Description,
			event.Location,
			event.Category,
			event.Color,
			event.ImageURL,
			formatTime(event.Start),
			formatTimePtr(event.End),
			boolToInt(event.AllDay),
			recurrence,
			formatTime(event.UpdatedAt),
			event.ID,
		)
		if err != nil {
			return mapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM event_hidden_from WHERE event_id = ?`, event.ID); err != nil {
			return mapError(err)
		}
		return insertHiddenFrom(ctx, tx, event.ID, event.HiddenFrom)
	})
}

// GetEvent retrieves an anchor by ID including its hidden-from set.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	event, err := scanEvent(r.pool.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return persistence.Event{}, err
	}

	hidden, err := r.hiddenFromFor(ctx, []string{id})
	if err != nil {
		return persistence.Event{}, err
	}
	event.HiddenFrom = hidden[id]

	return event, nil
}

// ListEvents returns anchors matching the filter ordered by start ascending.
// The StartsOnOrBefore bound prunes one-off events only: recurring anchors
// always pass because their occurrences may land far beyond the anchor start.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.StartsOnOrBefore != nil {
		conditions = append(conditions, `(recurrence IS NOT NULL OR start_at <= ?)`)
		args = append(args, formatTime(*filter.StartsOnOrBefore))
	}
	if filter.Category != nil {
		conditions = append(conditions, `category = ?`)
		args = append(args, *filter.Category)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	query += ` ORDER BY start_at ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	ids := make([]string, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		ids = append(ids, event.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	hidden, err := r.hiddenFromFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].HiddenFrom = hidden[events[i].ID]
	}

	return events, nil
}

// ReplaceHiddenFrom swaps the hidden-from set of an event atomically so that
// readers never observe a partially replaced set.
func (r *EventRepository) ReplaceHiddenFrom(ctx context.Context, eventID string, userIDs []string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM events WHERE id = ?`, eventID).Scan(&exists)
		if err != nil {
			return mapError(err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM event_hidden_from WHERE event_id = ?`, eventID); err != nil {
			return mapError(err)
		}
		return insertHiddenFrom(ctx, tx, eventID, userIDs)
	})
}

// DeleteEvent removes an anchor. Hidden-from rows and RSVPs cascade.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func (r *EventRepository) hiddenFromFor(ctx context.Context, eventIDs []string) (map[string][]string, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(eventIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT event_id, user_id FROM event_hidden_from WHERE event_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	hidden := make(map[string][]string)
	for rows.Next() {
		var eventID, userID string
		if err := rows.Scan(&eventID, &userID); err != nil {
			return nil, mapError(err)
		}
		hidden[eventID] = append(hidden[eventID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for _, ids := range hidden {
		sort.Strings(ids)
	}

	return hidden, nil
}

func insertHiddenFrom(ctx context.Context, tx *sql.Tx, eventID string, userIDs []string) error {
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_hidden_from (event_id, user_id) VALUES (?, ?)`, eventID, userID); err != nil {
			return mapError(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var event persistence.Event
	var startStr, createdAtStr, updatedAtStr string
	var endStr, recurrence sql.NullString
	var allDay int

	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.Category,
		&event.Color,
		&event.ImageURL,
		&startStr,
		&endStr,
		&allDay,
		&recurrence,
		&event.CreatedByID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	if event.Start, err = parseTime(startStr); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTimePtr(endStr); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Event{}, err
	}

	event.AllDay = allDay != 0
	if recurrence.Valid {
		value := recurrence.String
		event.RecurrenceJSON = &value
	}

	return event, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
