package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videotube/backend/internal/models"
)

func seedUser(t *testing.T, repo *MemoryUserRepository, id, username string) models.User {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		FullName:     username,
		PasswordHash: "hash",
		AvatarURL:    "https://cdn.example.com/" + username + ".png",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestMemoryUserRepository_Uniqueness(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	ctx := context.Background()

	seedUser(t, users, "u1", "alice")

	err := users.Create(ctx, models.User{ID: "u2", Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrConflict)

	err = users.Create(ctx, models.User{ID: "u3", Username: "bob", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrConflict)

	found, err := users.FindByUsernameOrEmail(ctx, "", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)

	_, err = users.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	ctx := context.Background()

	seedUser(t, users, "u1", "alice")
	require.NoError(t, users.AppendWatchHistory(ctx, "u1", "v1"))
	token := "refresh-1"
	require.NoError(t, users.SetRefreshToken(ctx, "u1", &token))

	fetched, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	fetched.WatchHistory[0] = "mutated"
	*fetched.RefreshToken = "mutated"

	again, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, again.WatchHistory)
	assert.Equal(t, "refresh-1", *again.RefreshToken)
}

func TestMemoryUserRepository_UpdateProfile(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	ctx := context.Background()

	seedUser(t, users, "u1", "alice")
	seedUser(t, users, "u2", "bob")

	name := "Alice Liddell"
	updated, err := users.UpdateProfile(ctx, "u1", ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.FullName)
	assert.Equal(t, "alice@example.com", updated.Email)

	taken := "bob@example.com"
	_, err = users.UpdateProfile(ctx, "u1", ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = users.UpdateProfile(ctx, "missing", ProfileUpdate{FullName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepository_CompareAndSwapRefreshToken(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	ctx := context.Background()

	seedUser(t, users, "u1", "alice")

	assert.ErrorIs(t, users.CompareAndSwapRefreshToken(ctx, "u1", "v1", "v2"), ErrStaleToken)

	v1 := "v1"
	require.NoError(t, users.SetRefreshToken(ctx, "u1", &v1))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := users.CompareAndSwapRefreshToken(ctx, "u1", "v1", "v2"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	user, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "v2", *user.RefreshToken)

	assert.ErrorIs(t, users.CompareAndSwapRefreshToken(ctx, "missing", "a", "b"), ErrNotFound)
}

func TestMemorySubscriptionRepository_CreateAndSnapshot(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	subs := store.Subscriptions()
	ctx := context.Background()

	seedUser(t, users, "a", "a")
	seedUser(t, users, "b", "b")
	seedUser(t, users, "c", "c")

	require.NoError(t, subs.Create(ctx, models.Subscription{ID: "s1", SubscriberID: "a", ChannelID: "c"}))
	require.NoError(t, subs.Create(ctx, models.Subscription{ID: "s2", SubscriberID: "b", ChannelID: "c"}))
	assert.ErrorIs(t, subs.Create(ctx, models.Subscription{ID: "s3", SubscriberID: "a", ChannelID: "c"}), ErrConflict)
	assert.ErrorIs(t, subs.Create(ctx, models.Subscription{ID: "s4", SubscriberID: "ghost", ChannelID: "c"}), ErrNotFound)

	err := subs.Snapshot(ctx, func(ctx context.Context, r SubscriptionReader) error {
		byChannel, err := r.FindByChannel(ctx, "c")
		require.NoError(t, err)
		assert.Len(t, byChannel, 2)

		bySubscriber, err := r.FindBySubscriber(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, bySubscriber, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryVideoRepository_FindByIDsSkipsMissing(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	videos := store.Videos()
	ctx := context.Background()

	seedUser(t, users, "owner", "owner")
	require.NoError(t, videos.Create(ctx, models.Video{ID: "v1", OwnerID: "owner", Title: "one"}))
	require.NoError(t, videos.Create(ctx, models.Video{ID: "v2", OwnerID: "owner", Title: "two"}))
	assert.ErrorIs(t, videos.Create(ctx, models.Video{ID: "v3", OwnerID: "ghost"}), ErrNotFound)

	found, err := videos.FindByIDs(ctx, []string{"v2", "gone", "v1"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "v2", found[0].ID)
	assert.Equal(t, "v1", found[1].ID)
}
