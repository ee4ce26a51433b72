package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type fakeRegistrar struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (f *fakeRegistrar) Upload(_ context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, localPath)
	if err, ok := f.failOn[localPath]; ok {
		return "", err
	}
	return "https://cdn.example.com/" + localPath, nil
}

func newTestService(t *testing.T) (*Service, *repositories.MemoryUserRepository, *fakeRegistrar) {
	t.Helper()
	users := repositories.NewMemoryStore().Users()
	media := &fakeRegistrar{failOn: map[string]error{}}
	svc := NewService(users, media,
		WithHashCost(bcrypt.MinCost),
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	return svc, users, media
}

func aliceRegistration() Registration {
	return Registration{
		Username:   "  Alice ",
		Email:      "Alice@Example.com",
		FullName:   " Alice Liddell ",
		Password:   "wonderland",
		AvatarPath: "avatar.png",
		CoverPath:  "cover.png",
	}
}

func TestRegisterCreatesUser(t *testing.T) {
	svc, users, media := newTestService(t)

	user, err := svc.Register(context.Background(), aliceRegistration())
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice Liddell", user.FullName)
	assert.Equal(t, "https://cdn.example.com/avatar.png", user.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/cover.png", user.CoverImageURL)
	assert.NotEqual(t, "wonderland", user.PasswordHash)
	assert.Nil(t, user.RefreshToken)
	assert.Equal(t, []string{"avatar.png", "cover.png"}, media.calls)

	stored, err := users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(stored, "wonderland"))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, users, media := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, aliceRegistration())
	require.NoError(t, err)
	media.calls = nil

	sameName := aliceRegistration()
	sameName.Username = "ALICE"
	sameName.Email = "other@example.com"
	_, err = svc.Register(ctx, sameName)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	sameEmail := aliceRegistration()
	sameEmail.Username = "bob"
	_, err = svc.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.Empty(t, media.calls, "no upload for a conflicting registration")

	stored, err := users.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, stored.PasswordHash)
	assert.Equal(t, "alice@example.com", stored.Email)
}

func TestRegisterValidatesBeforeWriting(t *testing.T) {
	blanks := map[string]func(*Registration){
		"username": func(r *Registration) { r.Username = "   " },
		"email":    func(r *Registration) { r.Email = "" },
		"fullName": func(r *Registration) { r.FullName = "\t" },
		"password": func(r *Registration) { r.Password = " " },
		"avatar":   func(r *Registration) { r.AvatarPath = "" },
	}

	for field, blank := range blanks {
		t.Run(field, func(t *testing.T) {
			svc, users, media := newTestService(t)
			reg := aliceRegistration()
			blank(&reg)

			_, err := svc.Register(context.Background(), reg)
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, apperr.DetailsOf(err), field)
			assert.Empty(t, media.calls)

			_, err = users.FindByUsernameOrEmail(context.Background(), "alice", "alice@example.com")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestRegisterMediaFailures(t *testing.T) {
	t.Run("avatar upload failure is a validation error", func(t *testing.T) {
		svc, users, media := newTestService(t)
		media.failOn["avatar.png"] = errors.New("s3 unavailable")

		_, err := svc.Register(context.Background(), aliceRegistration())
		require.ErrorIs(t, err, apperr.ErrValidation)

		_, err = users.FindByUsername(context.Background(), "alice")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("avatar upload timeout is an internal error", func(t *testing.T) {
		svc, users, media := newTestService(t)
		media.failOn["avatar.png"] = fmt.Errorf("put object: %w", context.DeadlineExceeded)

		_, err := svc.Register(context.Background(), aliceRegistration())
		require.ErrorIs(t, err, apperr.ErrInternal)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, http.StatusInternalServerError, apperr.Status(err))
		assert.Equal(t, "operation timed out", apperr.Message(err))

		_, err = users.FindByUsername(context.Background(), "alice")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("cover upload failure leaves cover empty", func(t *testing.T) {
		svc, _, media := newTestService(t)
		media.failOn["cover.png"] = errors.New("s3 unavailable")

		user, err := svc.Register(context.Background(), aliceRegistration())
		require.NoError(t, err)
		assert.Empty(t, user.CoverImageURL)
	})
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	user, err = svc.Authenticate(ctx, "", "ALICE@example.com", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.Authenticate(ctx, "alice", "", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody", "", "wonderland")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, " ", "", "wonderland")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	user := testUser(string(hash))
	assert.True(t, VerifyPassword(user, "secret"))
	assert.False(t, VerifyPassword(user, "Secret"))
	assert.False(t, VerifyPassword(testUser(""), "secret"))
	assert.False(t, VerifyPassword(testUser("not-a-bcrypt-hash"), "secret"))
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	bob := aliceRegistration()
	bob.Username = "bob"
	bob.Email = "bob@example.com"
	_, err = svc.Register(ctx, bob)
	require.NoError(t, err)

	name := "  Alice Pleasance "
	updated, err := svc.UpdateProfile(ctx, alice.ID, ProfileChanges{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Pleasance", updated.FullName)
	assert.Equal(t, "alice@example.com", updated.Email)

	email := "BOB@example.com"
	_, err = svc.UpdateProfile(ctx, alice.ID, ProfileChanges{Email: &email})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.UpdateProfile(ctx, alice.ID, ProfileChanges{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	blank := " "
	_, err = svc.UpdateProfile(ctx, alice.ID, ProfileChanges{FullName: &blank})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateProfile(ctx, "missing", ProfileChanges{FullName: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateAvatarAndCover(t *testing.T) {
	svc, _, media := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	updated, err := svc.UpdateAvatar(ctx, alice.ID, "new-avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new-avatar.png", updated.AvatarURL)

	updated, err = svc.UpdateCoverImage(ctx, alice.ID, "new-cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new-cover.png", updated.CoverImageURL)
	assert.Equal(t, "https://cdn.example.com/new-avatar.png", updated.AvatarURL)

	_, err = svc.UpdateAvatar(ctx, alice.ID, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	media.failOn["broken.png"] = errors.New("upload failed")
	_, err = svc.UpdateAvatar(ctx, alice.ID, "broken.png")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	media.failOn["slow.png"] = context.DeadlineExceeded
	_, err = svc.UpdateCoverImage(ctx, alice.ID, "slow.png")
	assert.ErrorIs(t, err, apperr.ErrInternal)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, alice.ID, "wrong", "looking-glass")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, svc.ChangePassword(ctx, alice.ID, "wonderland", "looking-glass"))

	_, err = svc.Authenticate(ctx, "alice", "", "wonderland")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "alice", "", "looking-glass")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, alice.ID, "looking-glass", "  ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func testUser(hash string) models.User {
	return models.User{ID: "u1", Username: "alice", PasswordHash: hash}
}
