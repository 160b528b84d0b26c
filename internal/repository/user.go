package repository

import (
	"context"

	"threadline/internal/domain"
)

// UserRepository exposes persistence operations for User aggregates and the
// follow graph between them.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	SetFrozen(ctx context.Context, id string, frozen bool) error

	// ToggleFollow flips the actor->target follow edge as a single atomic
	// unit and reports whether the edge exists afterwards. Both directional
	// views derive from the same edge, so a reader can never observe only
	// one side updated.
	ToggleFollow(ctx context.Context, actorID, targetID string) (followed bool, err error)

	// Following returns the ids the given user follows.
	Following(ctx context.Context, userID string) ([]string, error)
}
