// Package auth issues, verifies and rotates session tokens and resolves
// access tokens to identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

// Config holds the signing secrets and lifetimes for both token kinds.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

func (c Config) validate() error {
	switch {
	case c.AccessSecret == "" || c.RefreshSecret == "":
		return errors.New("auth: access and refresh secrets must be set")
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return errors.New("auth: token lifetimes must be positive")
	}
	return nil
}

// Service issues stateless access tokens and stateful refresh tokens. The
// refresh token currently valid for a user is the one persisted on the user
// record; anything else that still verifies is treated as a replay.
type Service struct {
	users         repositories.UserRepository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used to sign and verify tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a token service backed by the user repository.
func NewService(users repositories.UserRepository, cfg Config, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user repository must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		users:         users,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssuePair mints a fresh token pair and stores the refresh token on the user,
// replacing whatever was there before.
func (s *Service) IssuePair(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, apperr.Validation("user id must be provided")
	}

	tokens, err := s.sign(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := s.users.SetRefreshToken(ctx, userID, &tokens.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.NotFound("user not found")
		}
		return models.SessionTokens{}, apperr.Wrap(err, "store refresh token")
	}

	return tokens, nil
}

// VerifyAccess checks an access token and returns the user id it was issued for.
func (s *Service) VerifyAccess(token string) (string, error) {
	if token == "" {
		return "", apperr.Unauthorized("unauthorized request")
	}
	claims, err := parseToken(token, kindAccess, s.accessSecret, s.now)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Rotate exchanges the presented refresh token for a new pair. The swap is a
// compare-and-set on the stored token, so of several concurrent callers
// presenting the same token exactly one succeeds and the rest see Revoked.
func (s *Service) Rotate(ctx context.Context, presented string) (models.SessionTokens, error) {
	if presented == "" {
		return models.SessionTokens{}, apperr.Unauthorized("refresh token is required")
	}

	claims, err := parseToken(presented, kindRefresh, s.refreshSecret, s.now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	ctx, span := logging.StartSpan(ctx, "auth.rotate")
	defer span.End()
	logger := logging.FromContext(ctx)

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.NotFound("user not found")
		}
		return models.SessionTokens{}, apperr.Wrap(err, "load user")
	}

	if user.RefreshToken == nil || *user.RefreshToken != presented {
		logger.Warn("refresh token reuse detected", "user_id", user.ID, "has_session", user.RefreshToken != nil)
		return models.SessionTokens{}, apperr.Revoked("refresh token is expired or used")
	}

	tokens, err := s.sign(user.ID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := s.users.CompareAndSwapRefreshToken(ctx, user.ID, presented, tokens.RefreshToken); err != nil {
		switch {
		case errors.Is(err, repositories.ErrStaleToken):
			logger.Warn("lost refresh token rotation race", "user_id", user.ID)
			return models.SessionTokens{}, apperr.Revoked("refresh token is expired or used")
		case errors.Is(err, repositories.ErrNotFound):
			return models.SessionTokens{}, apperr.NotFound("user not found")
		}
		return models.SessionTokens{}, apperr.Wrap(err, "rotate refresh token")
	}

	return tokens, nil
}

// Revoke clears the stored refresh token, ending the user's refreshable session.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Wrap(err, "clear refresh token")
	}
	return nil
}

func (s *Service) sign(userID string) (models.SessionTokens, error) {
	now := s.now()

	access, accessExp, err := signToken(userID, kindAccess, s.accessSecret, s.accessTTL, now)
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("sign access token", fmt.Errorf("sign: %w", err))
	}
	refresh, refreshExp, err := signToken(userID, kindRefresh, s.refreshSecret, s.refreshTTL, now)
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("sign refresh token", fmt.Errorf("sign: %w", err))
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
