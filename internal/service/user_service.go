package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"threadline/internal/domain"
	"threadline/internal/media"
	"threadline/internal/repository"
)

// FollowState reports the outcome of a follow toggle.
type FollowState string

const (
	Followed   FollowState = "followed"
	Unfollowed FollowState = "unfollowed"
)

// UpdateProfileInput carries a partial profile update. Empty fields leave
// the stored value untouched; a non-empty password is re-hashed; a raw
// image payload replaces the stored profile image through the media
// manager.
type UpdateProfileInput struct {
	Name             string
	Username         string
	Email            string
	Password         string
	Bio              string
	ImageRef         string
	Image            []byte
	ImageContentType string
}

// UserService describes identity lifecycle and follow-graph operations.
type UserService interface {
	Register(ctx context.Context, name, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetProfile(ctx context.Context, query string) (*domain.User, error)
	UpdateProfile(ctx context.Context, actorID, targetID string, input UpdateProfileInput) (*domain.User, error)
	FollowUnfollow(ctx context.Context, actorID, targetID string) (FollowState, error)
	Freeze(ctx context.Context, actorID string) error
}

type userService struct {
	users repository.UserRepository
	media *media.Manager
}

func NewUserService(users repository.UserRepository, mediaMgr *media.Manager) UserService {
	return &userService{
		users: users,
		media: mediaMgr,
	}
}

func (s *userService) Register(ctx context.Context, name, username, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	// a frozen account thaws on its next successful login
	if user.IsFrozen {
		if err := s.users.SetFrozen(ctx, user.ID, false); err != nil {
			return nil, err
		}
		user.IsFrozen = false
	}

	return sanitizeUser(user), nil
}

// GetProfile resolves a user by id when the query parses as a uuid,
// otherwise by username.
func (s *userService) GetProfile(ctx context.Context, query string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if uuid.Validate(query) == nil {
		user, err = s.users.GetByID(ctx, query)
	} else {
		user, err = s.users.GetByUsername(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, actorID, targetID string, input UpdateProfileInput) (*domain.User, error) {
	if err := authorizeOwner(actorID, targetID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	previousRef := user.ProfileImageRef
	ref, err := s.media.Attach(ctx, input.Image, input.ImageContentType, previousRef)
	if err != nil {
		return nil, err
	}
	user.ProfileImageRef = ref
	if input.ImageRef != "" && len(input.Image) == 0 {
		user.ProfileImageRef = input.ImageRef
	}

	// partial update by omission: only non-empty fields overwrite
	if v := strings.TrimSpace(input.Name); v != "" {
		user.Name = v
	}
	if v := strings.TrimSpace(input.Username); v != "" {
		user.Username = v
	}
	if v := strings.TrimSpace(input.Email); v != "" {
		user.Email = v
	}
	if v := strings.TrimSpace(input.Bio); v != "" {
		user.Bio = v
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		// the record never pointed at the fresh blob; retire it
		if ref != previousRef {
			s.media.Discard(ctx, ref)
		}
		return nil, err
	}

	// only now is the superseded blob unreferenced
	if ref != previousRef {
		s.media.Discard(ctx, previousRef)
	}
	return sanitizeUser(user), nil
}

func (s *userService) FollowUnfollow(ctx context.Context, actorID, targetID string) (FollowState, error) {
	if actorID == targetID {
		return "", domain.ErrSelfReference
	}

	followed, err := s.users.ToggleFollow(ctx, actorID, targetID)
	if err != nil {
		return "", err
	}
	if followed {
		return Followed, nil
	}
	return Unfollowed, nil
}

func (s *userService) Freeze(ctx context.Context, actorID string) error {
	return s.users.SetFrozen(ctx, actorID, true)
}

// sanitizeUser scrubs the password digest before a user leaves the service.
func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
