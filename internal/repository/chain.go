// Package repository implements the durable store for the event core on
// PostgreSQL. It uses pgx directly (no ORM); reschedule and transfer
// serialize per chain with SELECT ... FOR UPDATE row locks.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhub/gatherhub/internal/model"
)

const occurrenceColumns = `id, chain_id, seq, title, content, photo_key, lat, lng, address,
	 online_only, link, start_time, end_time, timezone, created, last_edited, creator_id, prev_id`

// ChainRepository handles persistence for chains and their occurrences.
type ChainRepository struct {
	db *pgxpool.Pool
}

// NewChainRepository constructs a ChainRepository.
func NewChainRepository(db *pgxpool.Pool) *ChainRepository {
	return &ChainRepository{db: db}
}

// CreateChain inserts a chain with its first occurrence and the creator's
// organizer, attendance and subscription rows in one transaction. The creator
// always starts as organizer, going attendee and subscriber.
func (r *ChainRepository) CreateChain(ctx context.Context, chain *model.Chain, occ *model.Occurrence) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO chains (id, owner_kind, owner_id, creator_id, thread_id, current_occurrence_id, created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		chain.ID, chain.Owner.Kind, chain.Owner.ID, chain.CreatorID, chain.ThreadID, occ.ID, chain.Created,
	)
	if err != nil {
		return fmt.Errorf("insert chain: %w", err)
	}

	if err = insertOccurrence(ctx, tx, occ); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO organizers (chain_id, user_id) VALUES ($1, $2)`,
		chain.ID, chain.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("insert creator organizer: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO attendance (chain_id, user_id, state) VALUES ($1, $2, $3)`,
		chain.ID, chain.CreatorID, int(model.AttendanceGoing),
	)
	if err != nil {
		return fmt.Errorf("insert creator attendance: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO subscriptions (chain_id, user_id) VALUES ($1, $2)`,
		chain.ID, chain.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("insert creator subscription: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetChain returns a chain or model.ErrNotFound.
func (r *ChainRepository) GetChain(ctx context.Context, id string) (*model.Chain, error) {
	var c model.Chain
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_kind, owner_id, creator_id, thread_id, current_occurrence_id, created
		 FROM chains WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Owner.Kind, &c.Owner.ID, &c.CreatorID, &c.ThreadID, &c.CurrentID, &c.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get chain: %w", err)
	}
	return &c, nil
}

// GetOccurrence returns a single occurrence or model.ErrNotFound.
func (r *ChainRepository) GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE id = $1`, id)
	occ, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	return occ, nil
}

// AppendOccurrence adds a rescheduled occurrence to a chain and moves the
// current pointer, serialized against concurrent reschedules by a row lock on
// the chain. expectedCurrentID is the occurrence the caller validated
// against; if another reschedule won the race the chain's pointer no longer
// matches and the operation fails with model.ErrConflict.
func (r *ChainRepository) AppendOccurrence(ctx context.Context, chainID, expectedCurrentID string, occ *model.Occurrence) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var currentID string
	err = tx.QueryRow(ctx,
		`SELECT current_occurrence_id FROM chains WHERE id = $1 FOR UPDATE`,
		chainID,
	).Scan(&currentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("lock chain row: %w", err)
	}
	if currentID != expectedCurrentID {
		return model.ErrConflict
	}

	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM occurrences WHERE chain_id = $1`,
		chainID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	occ.Seq = maxSeq + 1
	occ.PrevID = currentID

	if err = insertOccurrence(ctx, tx, occ); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE chains SET current_occurrence_id = $1 WHERE id = $2`,
		occ.ID, chainID,
	)
	if err != nil {
		return fmt.Errorf("move current pointer: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TransferOwner atomically changes a chain's owner. expectedOwner is the
// owner the caller resolved permissions against; a mismatch under the row
// lock means a concurrent transfer won and yields model.ErrConflict.
func (r *ChainRepository) TransferOwner(ctx context.Context, chainID string, expectedOwner, newOwner model.Owner) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var owner model.Owner
	err = tx.QueryRow(ctx,
		`SELECT owner_kind, owner_id FROM chains WHERE id = $1 FOR UPDATE`,
		chainID,
	).Scan(&owner.Kind, &owner.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("lock chain row: %w", err)
	}
	if owner != expectedOwner {
		return model.ErrConflict
	}

	_, err = tx.Exec(ctx,
		`UPDATE chains SET owner_kind = $1, owner_id = $2 WHERE id = $3`,
		newOwner.Kind, newOwner.ID, chainID,
	)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListOccurrences pages through a chain's occurrences, most recently created
// first. beforeSeq = 0 starts from the top; otherwise only occurrences with a
// lower sequence are returned.
func (r *ChainRepository) ListOccurrences(ctx context.Context, chainID string, beforeSeq, limit int) ([]model.Occurrence, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+occurrenceColumns+`
		 FROM occurrences
		 WHERE chain_id = $1 AND ($2 = 0 OR seq < $2)
		 ORDER BY seq DESC
		 LIMIT $3`,
		chainID, beforeSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occs []model.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, *occ)
	}
	return occs, rows.Err()
}

func insertOccurrence(ctx context.Context, tx pgx.Tx, occ *model.Occurrence) error {
	var lat, lng *float64
	if occ.Location != nil {
		lat, lng = &occ.Location.Lat, &occ.Location.Lng
	}
	var prev *string
	if occ.PrevID != "" {
		prev = &occ.PrevID
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO occurrences (`+occurrenceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		occ.ID, occ.ChainID, occ.Seq, occ.Title, occ.Content, occ.PhotoKey, lat, lng, occ.Address,
		occ.OnlineOnly, occ.Link, occ.StartTime, occ.EndTime, occ.Timezone, occ.Created,
		occ.LastEdited, occ.CreatorID, prev,
	)
	if err != nil {
		return fmt.Errorf("insert occurrence: %w", err)
	}
	return nil
}

func scanOccurrence(row pgx.Row) (*model.Occurrence, error) {
	var occ model.Occurrence
	var lat, lng *float64
	var prev *string
	err := row.Scan(
		&occ.ID, &occ.ChainID, &occ.Seq, &occ.Title, &occ.Content, &occ.PhotoKey, &lat, &lng,
		&occ.Address, &occ.OnlineOnly, &occ.Link, &occ.StartTime, &occ.EndTime, &occ.Timezone,
		&occ.Created, &occ.LastEdited, &occ.CreatorID, &prev,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		occ.Location = &model.Coordinate{Lat: *lat, Lng: *lng}
	}
	if prev != nil {
		occ.PrevID = *prev
	}
	return &occ, nil
}
