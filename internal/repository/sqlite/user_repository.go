package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"threadline/internal/domain"
	"threadline/internal/repository"
)

const createUsersTables = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	bio TEXT NOT NULL DEFAULT '',
	profile_image_ref TEXT NOT NULL DEFAULT '',
	is_frozen INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS follows (
	follower_id TEXT NOT NULL REFERENCES users(id),
	followed_id TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	PRIMARY KEY (follower_id, followed_id)
);

CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_id);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTables); err != nil {
		return fmt.Errorf("create users tables: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, name, username, email, password_hash, bio, profile_image_ref, is_frozen, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Bio,
		user.ProfileImageRef,
		boolToInt(user.IsFrozen),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return r.attachEdges(ctx, user)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE username = ?`, username)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return r.attachEdges(ctx, user)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET name = ?, username = ?, email = ?, password_hash = ?, bio = ?, profile_image_ref = ?, updated_at = ?
WHERE id = ?`,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Bio,
		user.ProfileImageRef,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %w", domain.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) SetFrozen(ctx context.Context, id string, frozen bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET is_frozen = ?, updated_at = ? WHERE id = ?`,
		boolToInt(frozen), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update frozen flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return nil
}

// ToggleFollow removes the actor->target edge if present, otherwise inserts
// it, inside a single transaction. Both the following and followers views
// read from the follows table, so the double-edge update is atomic by
// construction.
func (r *UserRepository) ToggleFollow(ctx context.Context, actorID, targetID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin follow toggle: %w", err)
	}
	defer tx.Rollback()

	var present int
	if err := tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM users WHERE id IN (?, ?)`, actorID, targetID).Scan(&present); err != nil {
		return false, fmt.Errorf("check follow pair: %w", err)
	}
	if present != 2 {
		return false, fmt.Errorf("user %w", domain.ErrNotFound)
	}

	res, err := tx.ExecContext(ctx, `
DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`, actorID, targetID)
	if err != nil {
		return false, fmt.Errorf("delete follow edge: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("follow rows affected: %w", err)
	}

	followed := false
	if removed == 0 {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO follows (follower_id, followed_id, created_at)
VALUES (?, ?, ?)`, actorID, targetID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("insert follow edge: %w", err)
		}
		followed = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit follow toggle: %w", err)
	}
	return followed, nil
}

func (r *UserRepository) Following(ctx context.Context, userID string) ([]string, error) {
	var exists int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return r.edgeIDs(ctx, `SELECT followed_id FROM follows WHERE follower_id = ? ORDER BY created_at`, userID)
}

const selectUser = `
SELECT id, name, username, email, password_hash, bio, profile_image_ref, is_frozen, created_at, updated_at
FROM users
`

func (r *UserRepository) attachEdges(ctx context.Context, user *domain.User) (*domain.User, error) {
	following, err := r.edgeIDs(ctx, `SELECT followed_id FROM follows WHERE follower_id = ? ORDER BY created_at`, user.ID)
	if err != nil {
		return nil, err
	}
	followers, err := r.edgeIDs(ctx, `SELECT follower_id FROM follows WHERE followed_id = ? ORDER BY created_at`, user.ID)
	if err != nil {
		return nil, err
	}
	user.Following = following
	user.Followers = followers
	return user, nil
}

func (r *UserRepository) edgeIDs(ctx context.Context, query, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query follow edges: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var edge string
		if err := rows.Scan(&edge); err != nil {
			return nil, fmt.Errorf("scan follow edge: %w", err)
		}
		ids = append(ids, edge)
	}
	return ids, rows.Err()
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user   domain.User
		frozen int
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Bio,
		&user.ProfileImageRef,
		&frozen,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.IsFrozen = frozen != 0
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
