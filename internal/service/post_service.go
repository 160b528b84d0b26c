package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"threadline/internal/domain"
	"threadline/internal/media"
	"threadline/internal/repository"
)

// LikeState reports the outcome of a like toggle.
type LikeState string

const (
	Liked   LikeState = "liked"
	Unliked LikeState = "unliked"
)

// CreatePostInput carries a new post. The image is either a ref to an
// already-stored blob or a raw payload to upload; a raw payload wins when
// both are set.
type CreatePostInput struct {
	PostedBy         string
	Text             string
	ImageRef         string
	Image            []byte
	ImageContentType string
}

// PostService coordinates content operations backed by repositories, plus
// the follow-driven feed query.
type PostService interface {
	CreatePost(ctx context.Context, actorID string, input CreatePostInput) (*domain.Post, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	DeletePost(ctx context.Context, actorID, id string) error
	ToggleLike(ctx context.Context, actorID, postID string) (LikeState, error)
	AddReply(ctx context.Context, actorID, postID, text string) (*domain.Reply, error)
	GetFeed(ctx context.Context, viewerID string) ([]domain.Post, error)
	GetUserPosts(ctx context.Context, username string) ([]domain.Post, error)
}

type postService struct {
	posts repository.PostRepository
	users repository.UserRepository
	media *media.Manager
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, mediaMgr *media.Manager) PostService {
	return &postService{
		posts: posts,
		users: users,
		media: mediaMgr,
	}
}

func (s *postService) CreatePost(ctx context.Context, actorID string, input CreatePostInput) (*domain.Post, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}

	if _, err := s.users.GetByID(ctx, input.PostedBy); err != nil {
		return nil, err
	}
	if err := authorizeOwner(actorID, input.PostedBy); err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(input.Text) > domain.MaxPostTextLength {
		return nil, fmt.Errorf("%w: text exceeds %d characters", domain.ErrValidation, domain.MaxPostTextLength)
	}

	imageRef := input.ImageRef
	if len(input.Image) > 0 {
		ref, err := s.media.Attach(ctx, input.Image, input.ImageContentType, "")
		if err != nil {
			return nil, err
		}
		imageRef = ref
	}

	post := &domain.Post{
		ID:       uuid.NewString(),
		AuthorID: input.PostedBy,
		Text:     input.Text,
		ImageRef: imageRef,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.posts.Get(ctx, id)
}

func (s *postService) DeletePost(ctx context.Context, actorID, id string) error {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwner(actorID, post.AuthorID); err != nil {
		return err
	}

	// row first, blob second; a failed blob delete is logged by the media
	// manager and leaves only an orphaned object, never a dangling ref
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.media.Discard(ctx, post.ImageRef)
	return nil
}

func (s *postService) ToggleLike(ctx context.Context, actorID, postID string) (LikeState, error) {
	liked, err := s.posts.ToggleLike(ctx, postID, actorID)
	if err != nil {
		return "", err
	}
	if liked {
		return Liked, nil
	}
	return Unliked, nil
}

// AddReply appends a reply carrying a snapshot of the actor's username and
// profile image at reply time. Later profile edits do not touch it.
func (s *postService) AddReply(ctx context.Context, actorID, postID, text string) (*domain.Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	reply := &domain.Reply{
		AuthorID:       actor.ID,
		AuthorUsername: actor.Username,
		AuthorImageRef: actor.ProfileImageRef,
		Text:           text,
	}
	if err := s.posts.AddReply(ctx, postID, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// GetFeed returns posts authored by everyone the viewer follows, newest
// first. An empty follow set yields an empty slice, not an error.
func (s *postService) GetFeed(ctx context.Context, viewerID string) ([]domain.Post, error) {
	following, err := s.users.Following(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.posts.ListByAuthors(ctx, following)
}

func (s *postService) GetUserPosts(ctx context.Context, username string) ([]domain.Post, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.posts.ListByAuthors(ctx, []string{user.ID})
}
