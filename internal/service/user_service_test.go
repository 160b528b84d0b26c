package service

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"threadline/internal/domain"
	"threadline/internal/media"
	"threadline/internal/repository/sqlite"
	"threadline/internal/storage"
)

type fakeStorage struct {
	uploads    []string
	deletes    []string
	failUpload bool
	failDelete bool
}

func (f *fakeStorage) UploadObject(_ context.Context, opts storage.UploadOptions, name, _ string, _ io.Reader) (string, error) {
	if f.failUpload {
		return "", fmt.Errorf("upload exploded")
	}
	ref := fmt.Sprintf("s3://%s/%s", opts.Bucket, name)
	f.uploads = append(f.uploads, ref)
	return ref, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, _, ref string) error {
	if f.failDelete {
		return fmt.Errorf("delete exploded")
	}
	f.deletes = append(f.deletes, ref)
	return nil
}

func newTestServices(t *testing.T) (UserService, PostService, *fakeStorage) {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := sqlite.NewUserRepository(db)
	posts := sqlite.NewPostRepository(db)

	ctx := context.Background()
	require.NoError(t, users.Init(ctx))
	require.NoError(t, posts.Init(ctx))

	fake := &fakeStorage{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mgr := media.NewManager(fake, storage.UploadOptions{Bucket: "media", KeyPrefix: "img"}, logger)

	return NewUserService(users, mgr), NewPostService(posts, users, mgr), fake
}

func registerUser(t *testing.T, svc UserService, username string) *domain.User {
	t.Helper()

	user, err := svc.Register(context.Background(), username, username, username+"@example.com", "hunter2secret")
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	user := registerUser(t, svc, "alice")
	require.NotEmpty(t, user.ID)
	require.Empty(t, user.PasswordHash, "digest must be scrubbed before leaving the service")

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, "Alice", "alice", "elsewhere@example.com", "hunter2secret")
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Register(ctx, "x", "", "x@example.com", "hunter2secret")
		require.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.Register(ctx, "x", "xx", "x@example.com", "")
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")

	got, err := svc.Authenticate(ctx, "alice", "hunter2secret")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)
	require.Empty(t, got.PasswordHash)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "hunter2secret")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateClearsFrozenFlag(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")
	require.NoError(t, svc.Freeze(ctx, alice.ID))

	frozen, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, frozen.IsFrozen)

	got, err := svc.Authenticate(ctx, "alice", "hunter2secret")
	require.NoError(t, err)
	require.False(t, got.IsFrozen)

	thawed, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, thawed.IsFrozen)
}

func TestGetProfileByIDOrUsername(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")

	byID, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	byName, err := svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice.ID, byName.ID)

	_, err = svc.GetProfile(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, fake := newTestServices(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")
	bob := registerUser(t, svc, "bob")

	t.Run("non-owner is denied", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, bob.ID, alice.ID, UpdateProfileInput{Bio: "hijacked"})
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("partial update by omission", func(t *testing.T) {
		got, err := svc.UpdateProfile(ctx, alice.ID, alice.ID, UpdateProfileInput{Bio: "new bio"})
		require.NoError(t, err)
		require.Equal(t, "new bio", got.Bio)
		require.Equal(t, "alice", got.Username)
		require.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("password change re-hashes", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, alice.ID, alice.ID, UpdateProfileInput{Password: "newsecret99"})
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, "alice", "hunter2secret")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)

		_, err = svc.Authenticate(ctx, "alice", "newsecret99")
		require.NoError(t, err)
	})

	t.Run("new image replaces the previous blob", func(t *testing.T) {
		got, err := svc.UpdateProfile(ctx, alice.ID, alice.ID, UpdateProfileInput{
			Image:            []byte("first"),
			ImageContentType: "image/png",
		})
		require.NoError(t, err)
		firstRef := got.ProfileImageRef
		require.NotEmpty(t, firstRef)
		require.Empty(t, fake.deletes)

		got, err = svc.UpdateProfile(ctx, alice.ID, alice.ID, UpdateProfileInput{
			Image:            []byte("second"),
			ImageContentType: "image/png",
		})
		require.NoError(t, err)
		require.NotEqual(t, firstRef, got.ProfileImageRef)
		require.Equal(t, []string{firstRef}, fake.deletes)
	})

	t.Run("username collision", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, bob.ID, bob.ID, UpdateProfileInput{Username: "alice"})
		require.ErrorIs(t, err, domain.ErrConflict)
	})
}

// A failed profile write must never leave the record pointing at a deleted
// blob, even when the update carried a replacement image.
func TestUpdateProfileFailureKeepsStoredImage(t *testing.T) {
	svc, _, fake := newTestServices(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")
	registerUser(t, svc, "bob")

	got, err := svc.UpdateProfile(ctx, alice.ID, alice.ID, UpdateProfileInput{
		Image:            []byte("first"),
		ImageContentType: "image/png",
	})
	require.NoError(t, err)
	firstRef := got.ProfileImageRef
	require.NotEmpty(t, firstRef)

	// username collision plus a replacement image: the row write fails
	_, err = svc.UpdateProfile(ctx, alice.ID, alice.ID, UpdateProfileInput{
		Username:         "bob",
		Image:            []byte("second"),
		ImageContentType: "image/png",
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	profile, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, firstRef, profile.ProfileImageRef)
	require.NotContains(t, fake.deletes, firstRef)

	// the upload that never got referenced is retired instead
	require.Len(t, fake.uploads, 2)
	require.Equal(t, []string{fake.uploads[1]}, fake.deletes)
}

func TestFollowUnfollow(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")
	bob := registerUser(t, svc, "bob")

	t.Run("self reference", func(t *testing.T) {
		_, err := svc.FollowUnfollow(ctx, alice.ID, alice.ID)
		require.ErrorIs(t, err, domain.ErrSelfReference)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := svc.FollowUnfollow(ctx, alice.ID, uuid.NewString())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("toggle twice restores the original set", func(t *testing.T) {
		state, err := svc.FollowUnfollow(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.Equal(t, Followed, state)

		state, err = svc.FollowUnfollow(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.Equal(t, Unfollowed, state)

		got, err := svc.GetProfile(ctx, alice.ID)
		require.NoError(t, err)
		require.Empty(t, got.Following)
	})
}
