package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhub/gatherhub/internal/model"
)

// The collaborator-backed tables. In a full deployment these services live
// elsewhere; the bundled implementations keep the core runnable against the
// same database while the service layer only sees the external interfaces.

// ThreadRepository implements external.Threads.
type ThreadRepository struct {
	db *pgxpool.Pool
}

// NewThreadRepository constructs a ThreadRepository.
func NewThreadRepository(db *pgxpool.Pool) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Create binds a new discussion thread to a chain id.
func (r *ThreadRepository) Create(ctx context.Context, chainID string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(ctx,
		`INSERT INTO threads (id, chain_id) VALUES ($1, $2)`,
		id, chainID,
	)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", model.ErrDependencyUnavailable)
	}
	return id, nil
}

// Delete removes a thread. Compensation path when chain creation fails after
// the thread exists.
func (r *ThreadRepository) Delete(ctx context.Context, threadID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM threads WHERE id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// PhotoRepository implements external.Photos.
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository constructs a PhotoRepository.
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Resolve returns the displayable URL for a photo key, or model.ErrNotFound.
func (r *PhotoRepository) Resolve(ctx context.Context, key string) (string, error) {
	var url string
	err := r.db.QueryRow(ctx, `SELECT url FROM photos WHERE key = $1`, key).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("resolve photo: %w", model.ErrDependencyUnavailable)
	}
	return url, nil
}

// HierarchyRepository implements external.Hierarchy over the moderators and
// community/group tables.
type HierarchyRepository struct {
	db *pgxpool.Pool
}

// NewHierarchyRepository constructs a HierarchyRepository.
func NewHierarchyRepository(db *pgxpool.Pool) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// IsModerator reports whether a user moderates the given community or group.
// Transitive grants are flattened into the moderators table upstream.
func (r *HierarchyRepository) IsModerator(ctx context.Context, kind, ownerID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM moderators WHERE subject_kind = $1 AND subject_id = $2 AND user_id = $3)`,
		kind, ownerID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("moderator lookup: %w", err)
	}
	return exists, nil
}

// CommunityExists reports whether a community id is known.
func (r *HierarchyRepository) CommunityExists(ctx context.Context, communityID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM communities WHERE id = $1)`, communityID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("community lookup: %w", err)
	}
	return exists, nil
}

// GroupExists reports whether a group id is known.
func (r *HierarchyRepository) GroupExists(ctx context.Context, groupID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM social_groups WHERE id = $1)`, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("group lookup: %w", err)
	}
	return exists, nil
}

// UserExists validates that a user can legitimately own an event. User
// records live with the identity provider, so a non-empty id is accepted.
func (r *HierarchyRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	return userID != "", nil
}
