package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

var testConfig = Config{
	AccessSecret:  "access-secret",
	AccessTTL:     15 * time.Minute,
	RefreshSecret: "refresh-secret",
	RefreshTTL:    24 * time.Hour,
}

type fixture struct {
	users *repositories.MemoryUserRepository
	svc   *Service
	clock *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	users := store.Users()
	require.NoError(t, users.Create(context.Background(), models.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice",
	}))

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(users, testConfig, WithClock(clock.Now))
	require.NoError(t, err)
	return fixture{users: users, svc: svc, clock: clock}
}

func storedRefreshToken(t *testing.T, users *repositories.MemoryUserRepository, id string) *string {
	t.Helper()
	user, err := users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user.RefreshToken
}

func TestNewServiceValidatesConfig(t *testing.T) {
	users := repositories.NewMemoryStore().Users()

	_, err := NewService(users, Config{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = NewService(users, Config{AccessSecret: "a", RefreshSecret: "r"})
	assert.Error(t, err)

	_, err = NewService(nil, testConfig)
	assert.Error(t, err)
}

func TestIssuePairPersistsRefreshToken(t *testing.T) {
	f := newFixture(t)

	tokens, err := f.svc.IssuePair(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, f.clock.Now().Add(testConfig.AccessTTL), tokens.AccessExpiresAt)

	stored := storedRefreshToken(t, f.users, "user-1")
	require.NotNil(t, stored)
	assert.Equal(t, tokens.RefreshToken, *stored)

	_, err = f.svc.IssuePair(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerifyAccess(t *testing.T) {
	f := newFixture(t)
	tokens, err := f.svc.IssuePair(context.Background(), "user-1")
	require.NoError(t, err)

	userID, err := f.svc.VerifyAccess(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = f.svc.VerifyAccess("")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.VerifyAccess("not-a-jwt")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	// A refresh token is signed with a different secret and kind.
	_, err = f.svc.VerifyAccess(tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	f.clock.Advance(testConfig.AccessTTL + time.Second)
	_, err = f.svc.VerifyAccess(tokens.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestVerifyAccessRejectsForeignSignature(t *testing.T) {
	f := newFixture(t)

	other, err := NewService(f.users, Config{
		AccessSecret:  "someone-else",
		AccessTTL:     time.Minute,
		RefreshSecret: "someone-else-refresh",
		RefreshTTL:    time.Hour,
	}, WithClock(f.clock.Now))
	require.NoError(t, err)

	tokens, err := other.IssuePair(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.svc.VerifyAccess(tokens.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRotateDetectsReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	v2, err := f.svc.Rotate(ctx, v1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, v1.RefreshToken, v2.RefreshToken)
	assert.Equal(t, v2.RefreshToken, *storedRefreshToken(t, f.users, "user-1"))

	_, err = f.svc.Rotate(ctx, v1.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrRevoked)

	v3, err := f.svc.Rotate(ctx, v2.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, v3.RefreshToken, *storedRefreshToken(t, f.users, "user-1"))
}

func TestRotateExpiredTokenFailsEvenWhenStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens, err := f.svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	f.clock.Advance(testConfig.RefreshTTL + time.Second)

	_, err = f.svc.Rotate(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrExpired)
	assert.Equal(t, tokens.RefreshToken, *storedRefreshToken(t, f.users, "user-1"))
}

func TestRotateFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Rotate(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Rotate(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	tokens, err := f.svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	// Access tokens cannot be used to rotate.
	_, err = f.svc.Rotate(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	orphan, _, err := signToken("deleted-user", kindRefresh, []byte(testConfig.RefreshSecret), time.Hour, f.clock.Now())
	require.NoError(t, err)
	_, err = f.svc.Rotate(ctx, orphan)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRevokeEndsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens, err := f.svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, "user-1"))
	assert.Nil(t, storedRefreshToken(t, f.users, "user-1"))

	_, err = f.svc.Rotate(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrRevoked)

	// The account itself survives logout.
	_, err = f.users.FindByID(ctx, "user-1")
	require.NoError(t, err)
}

func TestConcurrentRotateHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens, err := f.svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []models.SessionTokens
		revoked int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := f.svc.Rotate(ctx, tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, next)
			case apperr.KindOf(err) == apperr.ErrRevoked:
				revoked++
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, callers-1, revoked)
	assert.Equal(t, winners[0].RefreshToken, *storedRefreshToken(t, f.users, "user-1"))
}
