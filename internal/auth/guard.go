package auth

import (
	"context"
	"errors"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

// Identity is the authenticated caller resolved from an access token.
type Identity struct {
	UserID string
	User   models.User
}

// Guard gates authenticated operations.
type Guard struct {
	tokens *Service
	users  repositories.UserRepository
}

// NewGuard constructs a Guard verifying tokens with svc and loading users from users.
func NewGuard(svc *Service, users repositories.UserRepository) *Guard {
	if svc == nil || users == nil {
		panic("auth: guard requires a token service and user repository")
	}
	return &Guard{tokens: svc, users: users}
}

// Authenticate verifies accessToken and loads the user it names.
func (g *Guard) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	userID, err := g.tokens.VerifyAccess(accessToken)
	if err != nil {
		return Identity{}, err
	}

	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Identity{}, apperr.NotFound("user for access token no longer exists")
		}
		return Identity{}, apperr.Wrap(err, "load authenticated user")
	}

	return Identity{UserID: user.ID, User: user}, nil
}
