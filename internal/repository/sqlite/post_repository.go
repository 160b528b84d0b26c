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

const createPostsTables = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	author_id TEXT NOT NULL REFERENCES users(id),
	text TEXT NOT NULL,
	image_ref TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);

CREATE TABLE IF NOT EXISTS post_likes (
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS post_replies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	author_id TEXT NOT NULL,
	author_username TEXT NOT NULL,
	author_image_ref TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_post_replies_post ON post_replies(post_id);
`

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPostsTables); err != nil {
		return fmt.Errorf("create posts tables: %w", err)
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	post.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
INSERT INTO posts (id, author_id, text, image_ref, created_at)
VALUES (?, ?, ?, ?, ?)`,
		post.ID,
		post.AuthorID,
		post.Text,
		post.ImageRef,
		post.CreatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			return fmt.Errorf("post author %w", domain.ErrNotFound)
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, author_id, text, image_ref, created_at
FROM posts
WHERE id = ?`, id)

	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachLikesAndReplies(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post %w", domain.ErrNotFound)
	}
	return nil
}

// ToggleLike removes the (post, user) like row if present, otherwise
// inserts it, inside a single transaction keyed on the likes primary key.
// Membership flips exactly once per call regardless of interleaving.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin like toggle: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM posts WHERE id = ?`, postID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check post: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("post %w", domain.ErrNotFound)
	}

	res, err := tx.ExecContext(ctx, `
DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("like rows affected: %w", err)
	}

	liked := false
	if removed == 0 {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO post_likes (post_id, user_id, created_at)
VALUES (?, ?, ?)`, postID, userID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("insert like: %w", err)
		}
		liked = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit like toggle: %w", err)
	}
	return liked, nil
}

func (r *PostRepository) AddReply(ctx context.Context, postID string, reply *domain.Reply) error {
	reply.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO post_replies (post_id, author_id, author_username, author_image_ref, text, created_at)
SELECT id, ?, ?, ?, ?, ? FROM posts WHERE id = ?`,
		reply.AuthorID,
		reply.AuthorUsername,
		reply.AuthorImageRef,
		reply.Text,
		reply.CreatedAt,
		postID,
	)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PostRepository) ListByAuthors(ctx context.Context, authorIDs []string) ([]domain.Post, error) {
	if len(authorIDs) == 0 {
		return []domain.Post{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(authorIDs)), ",")
	args := make([]any, len(authorIDs))
	for i, id := range authorIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, author_id, text, image_ref, created_at
FROM posts
WHERE author_id IN (%s)
ORDER BY created_at DESC, rowid ASC`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query posts by authors: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		if err := r.attachLikesAndReplies(ctx, &posts[i]); err != nil {
			return nil, err
		}
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return posts, nil
}

func (r *PostRepository) attachLikesAndReplies(ctx context.Context, post *domain.Post) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_id FROM post_likes WHERE post_id = ? ORDER BY created_at`, post.ID)
	if err != nil {
		return fmt.Errorf("query likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("scan like: %w", err)
		}
		post.Likes = append(post.Likes, userID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	replyRows, err := r.db.QueryContext(ctx, `
SELECT author_id, author_username, author_image_ref, text, created_at
FROM post_replies
WHERE post_id = ?
ORDER BY id`, post.ID)
	if err != nil {
		return fmt.Errorf("query replies: %w", err)
	}
	defer replyRows.Close()

	for replyRows.Next() {
		var reply domain.Reply
		if err := replyRows.Scan(
			&reply.AuthorID,
			&reply.AuthorUsername,
			&reply.AuthorImageRef,
			&reply.Text,
			&reply.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan reply: %w", err)
		}
		post.Replies = append(post.Replies, reply)
	}
	return replyRows.Err()
}

func scanPost(row interface {
	Scan(dest ...any) error
}) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Text,
		&post.ImageRef,
		&post.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &post, nil
}
