package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhub/gatherhub/internal/model"
)

// TrackerRepository handles the per-user record sets of a chain: attendance,
// subscriptions and organizers. Upserts are idempotent per (chain, user) and
// need no cross-user coordination. Counts are derived on read from the record
// sets, never stored, so they cannot drift.
type TrackerRepository struct {
	db *pgxpool.Pool
}

// NewTrackerRepository constructs a TrackerRepository.
func NewTrackerRepository(db *pgxpool.Pool) *TrackerRepository {
	return &TrackerRepository{db: db}
}

// SetAttendance upserts a user's RSVP state. Not-going clears the record:
// absence of a row is the default state.
func (r *TrackerRepository) SetAttendance(ctx context.Context, chainID, userID string, state model.AttendanceState) error {
	if state == model.AttendanceNotGoing {
		_, err := r.db.Exec(ctx,
			`DELETE FROM attendance WHERE chain_id = $1 AND user_id = $2`,
			chainID, userID,
		)
		if err != nil {
			return fmt.Errorf("clear attendance: %w", err)
		}
		return nil
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO attendance (chain_id, user_id, state) VALUES ($1, $2, $3)
		 ON CONFLICT (chain_id, user_id)
		 DO UPDATE SET state = EXCLUDED.state, updated = CURRENT_TIMESTAMP`,
		chainID, userID, int(state),
	)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// GetAttendance returns a user's state; a missing record is not-going.
func (r *TrackerRepository) GetAttendance(ctx context.Context, chainID, userID string) (model.AttendanceState, error) {
	var state int
	err := r.db.QueryRow(ctx,
		`SELECT state FROM attendance WHERE chain_id = $1 AND user_id = $2`,
		chainID, userID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AttendanceNotGoing, nil
		}
		return model.AttendanceNotGoing, fmt.Errorf("get attendance: %w", err)
	}
	return model.AttendanceState(state), nil
}

// SetSubscription upserts or clears a user's subscription.
func (r *TrackerRepository) SetSubscription(ctx context.Context, chainID, userID string, subscribed bool) error {
	if !subscribed {
		_, err := r.db.Exec(ctx,
			`DELETE FROM subscriptions WHERE chain_id = $1 AND user_id = $2`,
			chainID, userID,
		)
		if err != nil {
			return fmt.Errorf("unsubscribe: %w", err)
		}
		return nil
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (chain_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (chain_id, user_id) DO NOTHING`,
		chainID, userID,
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// IsSubscribed reports whether a user is subscribed to a chain.
func (r *TrackerRepository) IsSubscribed(ctx context.Context, chainID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE chain_id = $1 AND user_id = $2)`,
		chainID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return exists, nil
}

// AddOrganizer grants edit rights on a chain. Idempotent.
func (r *TrackerRepository) AddOrganizer(ctx context.Context, chainID, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO organizers (chain_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (chain_id, user_id) DO NOTHING`,
		chainID, userID,
	)
	if err != nil {
		return fmt.Errorf("add organizer: %w", err)
	}
	return nil
}

// RemoveOrganizer revokes a user's organizer grant.
func (r *TrackerRepository) RemoveOrganizer(ctx context.Context, chainID, userID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM organizers WHERE chain_id = $1 AND user_id = $2`,
		chainID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove organizer: %w", err)
	}
	return nil
}

// IsOrganizer reports whether a user holds an organizer grant on a chain.
func (r *TrackerRepository) IsOrganizer(ctx context.Context, chainID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM organizers WHERE chain_id = $1 AND user_id = $2)`,
		chainID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check organizer: %w", err)
	}
	return exists, nil
}

// Counts derives the chain aggregates from the record sets in one query.
func (r *TrackerRepository) Counts(ctx context.Context, chainID string) (model.Counts, error) {
	var c model.Counts
	err := r.db.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM attendance WHERE chain_id = $1 AND state = $2),
		   (SELECT COUNT(*) FROM attendance WHERE chain_id = $1 AND state = $3),
		   (SELECT COUNT(*) FROM organizers WHERE chain_id = $1),
		   (SELECT COUNT(*) FROM subscriptions WHERE chain_id = $1)`,
		chainID, int(model.AttendanceGoing), int(model.AttendanceMaybe),
	).Scan(&c.Going, &c.Maybe, &c.Organizers, &c.Subscribers)
	if err != nil {
		return model.Counts{}, fmt.Errorf("derive counts: %w", err)
	}
	return c, nil
}

// ListAttendees pages attendees (going or maybe) of a chain ordered by user
// id. afterUser = "" starts from the beginning.
func (r *TrackerRepository) ListAttendees(ctx context.Context, chainID, afterUser string, limit int) ([]model.AttendanceRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, state FROM attendance
		 WHERE chain_id = $1 AND user_id > $2
		 ORDER BY user_id ASC
		 LIMIT $3`,
		chainID, afterUser, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		var state int
		if err := rows.Scan(&rec.UserID, &state); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		rec.State = model.AttendanceState(state)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListSubscribers pages subscriber user ids of a chain.
func (r *TrackerRepository) ListSubscribers(ctx context.Context, chainID, afterUser string, limit int) ([]string, error) {
	return r.listUserIDs(ctx, "subscriptions", chainID, afterUser, limit)
}

// ListOrganizers pages organizer user ids of a chain.
func (r *TrackerRepository) ListOrganizers(ctx context.Context, chainID, afterUser string, limit int) ([]string, error) {
	return r.listUserIDs(ctx, "organizers", chainID, afterUser, limit)
}

// Subscribers returns every subscriber of a chain, for notification fan-out.
func (r *TrackerRepository) Subscribers(ctx context.Context, chainID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM subscriptions WHERE chain_id = $1 ORDER BY user_id ASC`,
		chainID,
	)
	if err != nil {
		return nil, fmt.Errorf("list all subscribers: %w", err)
	}
	defer rows.Close()
	return scanUserIDs(rows)
}

func (r *TrackerRepository) listUserIDs(ctx context.Context, table, chainID, afterUser string, limit int) ([]string, error) {
	// table is one of the fixed record tables, never caller input.
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM `+table+`
		 WHERE chain_id = $1 AND user_id > $2
		 ORDER BY user_id ASC
		 LIMIT $3`,
		chainID, afterUser, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	return scanUserIDs(rows)
}

func scanUserIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
