package repository

import (
	"context"

	"threadline/internal/domain"
)

// PostRepository exposes persistence operations for Post aggregates. Likes
// and replies live with their parent post and cascade on delete.
type PostRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id string) (*domain.Post, error)
	Delete(ctx context.Context, id string) error

	// ToggleLike flips the (post, user) like membership exactly once and
	// reports whether the like exists afterwards.
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error)

	// AddReply appends a denormalized reply snapshot to the post.
	AddReply(ctx context.Context, postID string, reply *domain.Reply) error

	// ListByAuthors returns posts by any of the given authors, newest
	// first, ties in insertion order. An empty author set yields an empty
	// result.
	ListByAuthors(ctx context.Context, authorIDs []string) ([]domain.Post, error)
}
