package handlers

import (
	"context"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/models"
)

// AccountService captures the credential and profile operations used by the handlers.
type AccountService interface {
	Register(ctx context.Context, reg accounts.Registration) (models.User, error)
	Authenticate(ctx context.Context, username, email, password string) (models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, changes accounts.ProfileChanges) (models.User, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (models.User, error)
}

// TokenService issues, rotates and revokes session tokens.
type TokenService interface {
	IssuePair(ctx context.Context, userID string) (models.SessionTokens, error)
	Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
}

// Authenticator resolves an access token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Identity, error)
}

// ProfileService computes the derived channel and history views.
type ProfileService interface {
	ChannelProfile(ctx context.Context, viewerID, username string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
