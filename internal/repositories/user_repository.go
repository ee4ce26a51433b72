package repositories

import (
	"context"
	"time"

	"github.com/videotube/backend/internal/models"
)

// ProfileUpdate lists the mutable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName      *string
	Email         *string
	AvatarURL     *string
	CoverImageURL *string
	UpdatedAt     time.Time
}

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	// FindByUsernameOrEmail returns the first user matching either non-empty identifier.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	// FindByIDs returns the users that still exist; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error
	// SetRefreshToken overwrites the stored refresh token; nil clears it.
	SetRefreshToken(ctx context.Context, id string, token *string) error
	// CompareAndSwapRefreshToken installs next only if the stored token equals
	// expected, returning ErrStaleToken otherwise.
	CompareAndSwapRefreshToken(ctx context.Context, id, expected, next string) error
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}
