package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/family-portal/internal/persistence"
)

// RSVPRepository implements persistence.RSVPRepository using SQLite.
type RSVPRepository struct {
	pool *ConnectionPool
}

// NewRSVPRepository creates a new SQLite RSVP repository.
func NewRSVPRepository(pool *ConnectionPool) *RSVPRepository {
	return &RSVPRepository{pool: pool}
}

// UpsertRSVP writes a member's answer for an event. The (event, user)
// primary key makes the insert-or-replace atomic: a concurrent upsert for
// the same pair leaves exactly one row.
func (r *RSVPRepository) UpsertRSVP(ctx context.Context, rsvp persistence.RSVP) (persistence.RSVP, error) {
	if rsvp.EventID == "" || rsvp.UserID == "" {
		return persistence.RSVP{}, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO rsvps (event_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, user_id)
		DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`

	if _, err := r.pool.db.ExecContext(ctx, query,
		rsvp.EventID,
		rsvp.UserID,
		rsvp.Status,
		formatTime(rsvp.CreatedAt),
		formatTime(rsvp.UpdatedAt),
	); err != nil {
		return persistence.RSVP{}, mapError(err)
	}

	return r.getRSVP(ctx, rsvp.EventID, rsvp.UserID)
}

// DeleteRSVP removes a member's answer entirely.
func (r *RSVPRepository) DeleteRSVP(ctx context.Context, eventID, userID string) error {
	result, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM rsvps WHERE event_id = ? AND user_id = ?`, eventID, userID)
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

// ListRSVPsForEvents returns all answers for the given events keyed by event
// ID, each set ordered by user ID.
func (r *RSVPRepository) ListRSVPsForEvents(ctx context.Context, eventIDs []string) (map[string][]persistence.RSVP, error) {
	if len(eventIDs) == 0 {
		return map[string][]persistence.RSVP{}, nil
	}

	placeholders := strings.Repeat("?,", len(eventIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT event_id, user_id, status, created_at, updated_at
		FROM rsvps
		WHERE event_id IN (`+placeholders+`)
		ORDER BY event_id ASC, user_id ASC
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make(map[string][]persistence.RSVP)
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return nil, err
		}
		result[rsvp.EventID] = append(result[rsvp.EventID], rsvp)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return result, nil
}

func (r *RSVPRepository) getRSVP(ctx context.Context, eventID, userID string) (persistence.RSVP, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT event_id, user_id, status, created_at, updated_at
		FROM rsvps
		WHERE event_id = ? AND user_id = ?
	`, eventID, userID)
	return scanRSVP(row)
}

func scanRSVP(row rowScanner) (persistence.RSVP, error) {
	var rsvp persistence.RSVP
	var createdAtStr, updatedAtStr string

	err := row.Scan(&rsvp.EventID, &rsvp.UserID, &rsvp.Status, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.RSVP{}, persistence.ErrNotFound
		}
		return persistence.RSVP{}, mapError(err)
	}

	if rsvp.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.RSVP{}, err
	}
	if rsvp.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.RSVP{}, err
	}

	return rsvp, nil
}
