package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"threadline/internal/domain"
	"threadline/internal/repository"
)

func newTestRepos(t *testing.T) (repository.UserRepository, repository.PostRepository) {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := NewUserRepository(db)
	posts := NewPostRepository(db)

	ctx := context.Background()
	require.NoError(t, users.Init(ctx))
	require.NoError(t, posts.Init(ctx))
	return users, posts
}

func seedUser(t *testing.T, users repository.UserRepository, username string) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "digest",
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func TestUserRepositoryCreateAndGet(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")

	byID, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
	require.Equal(t, "alice@example.com", byID.Email)
	require.False(t, byID.IsFrozen)

	byName, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice.ID, byName.ID)

	_, err = users.GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepositoryUniqueFields(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	seedUser(t, users, "alice")

	t.Run("duplicate username", func(t *testing.T) {
		err := users.Create(ctx, &domain.User{
			ID:           uuid.NewString(),
			Username:     "alice",
			Email:        "other@example.com",
			PasswordHash: "digest",
		})
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := users.Create(ctx, &domain.User{
			ID:           uuid.NewString(),
			Username:     "alice2",
			Email:        "alice@example.com",
			PasswordHash: "digest",
		})
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("username is case-sensitive", func(t *testing.T) {
		err := users.Create(ctx, &domain.User{
			ID:           uuid.NewString(),
			Username:     "Alice",
			Email:        "upper@example.com",
			PasswordHash: "digest",
		})
		require.NoError(t, err)
	})
}

func TestUserRepositoryUpdateProfile(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	alice.Bio = "hello there"
	alice.ProfileImageRef = "s3://bucket/alice.png"
	require.NoError(t, users.UpdateProfile(ctx, alice))

	got, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "hello there", got.Bio)
	require.Equal(t, "s3://bucket/alice.png", got.ProfileImageRef)

	t.Run("conflicting username", func(t *testing.T) {
		bob.Username = "alice"
		require.ErrorIs(t, users.UpdateProfile(ctx, bob), domain.ErrConflict)
	})

	t.Run("missing user", func(t *testing.T) {
		ghost := &domain.User{ID: uuid.NewString(), Username: "ghost", Email: "g@example.com", PasswordHash: "digest"}
		require.ErrorIs(t, users.UpdateProfile(ctx, ghost), domain.ErrNotFound)
	})
}

func TestToggleFollowSymmetry(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	followed, err := users.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, followed)

	gotAlice, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	gotBob, err := users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, []string{bob.ID}, gotAlice.Following)
	require.Equal(t, []string{alice.ID}, gotBob.Followers)
	require.Empty(t, gotAlice.Followers)
	require.Empty(t, gotBob.Following)

	followed, err = users.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, followed)

	gotAlice, err = users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	gotBob, err = users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, gotAlice.Following)
	require.Empty(t, gotBob.Followers)
}

func TestToggleFollowMissingUser(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")

	_, err := users.ToggleFollow(ctx, alice.ID, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = users.ToggleFollow(ctx, uuid.NewString(), alice.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// Interleaved toggles on the same pair must leave the two directional views
// consistent with each other, whatever order the toggles land in.
func TestToggleFollowConcurrent(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	const togglesPerWorker = 5

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range togglesPerWorker {
				_, err := users.ToggleFollow(ctx, alice.ID, bob.ID)
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	gotAlice, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	gotBob, err := users.GetByID(ctx, bob.ID)
	require.NoError(t, err)

	// 10 toggles net out to not-followed, and both views agree
	require.Empty(t, gotAlice.Following)
	require.Empty(t, gotBob.Followers)

	followed, err := users.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, followed)

	gotAlice, err = users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	gotBob, err = users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, []string{bob.ID}, gotAlice.Following)
	require.Equal(t, []string{alice.ID}, gotBob.Followers)
}

func TestFollowingList(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	carol := seedUser(t, users, "carol")

	_, err := users.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = users.ToggleFollow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	following, err := users.Following(ctx, alice.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{bob.ID, carol.ID}, following)

	_, err = users.Following(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetFrozen(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")

	require.NoError(t, users.SetFrozen(ctx, alice.ID, true))
	got, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, got.IsFrozen)

	require.NoError(t, users.SetFrozen(ctx, alice.ID, false))
	got, err = users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, got.IsFrozen)

	require.ErrorIs(t, users.SetFrozen(ctx, uuid.NewString(), true), domain.ErrNotFound)
}
