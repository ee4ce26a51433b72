// Package accounts owns user records: registration, credential checks and
// profile mutations.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

// MediaRegistrar uploads a local file and returns its public URL.
type MediaRegistrar interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Service implements credential storage on top of a UserRepository.
type Service struct {
	users        repositories.UserRepository
	media        MediaRegistrar
	mediaTimeout time.Duration
	hashCost     int
	now          func() time.Time
	newID        func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithMediaTimeout bounds each media upload.
func WithMediaTimeout(d time.Duration) Option {
	return func(s *Service) { s.mediaTimeout = d }
}

// NewService constructs the account service.
func NewService(users repositories.UserRepository, media MediaRegistrar, opts ...Option) *Service {
	if users == nil {
		panic("accounts: user repository must not be nil")
	}
	s := &Service{
		users:        users,
		media:        media,
		mediaTimeout: 30 * time.Second,
		hashCost:     bcrypt.DefaultCost,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewUser is the input to CreateUser. Asset URLs are already resolved.
type NewUser struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// Registration is the input to Register. Asset paths point at local files
// that are handed to the media registrar.
type Registration struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	AvatarPath string
	CoverPath  string
}

// Register validates the registration, uploads its assets and creates the user.
// Nothing is uploaded or written when a required field is missing or the
// username or email is already taken.
func (s *Service) Register(ctx context.Context, reg Registration) (models.User, error) {
	input := NewUser{
		Username: normalizeUsername(reg.Username),
		Email:    normalizeEmail(reg.Email),
		FullName: strings.TrimSpace(reg.FullName),
		Password: reg.Password,
	}
	if err := validateNewUser(input); err != nil {
		return models.User{}, err
	}
	if strings.TrimSpace(reg.AvatarPath) == "" {
		return models.User{}, apperr.Validation("avatar file is required", "avatar")
	}
	if err := s.ensureAvailable(ctx, input.Username, input.Email); err != nil {
		return models.User{}, err
	}

	logger := logging.FromContext(ctx)

	avatarURL, err := s.upload(ctx, reg.AvatarPath)
	if err != nil || avatarURL == "" {
		logger.Warn("avatar upload failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return models.User{}, apperr.Wrap(err, "upload avatar")
		}
		return models.User{}, apperr.Validation("avatar file is required", "avatar")
	}
	input.AvatarURL = avatarURL

	if strings.TrimSpace(reg.CoverPath) != "" {
		coverURL, err := s.upload(ctx, reg.CoverPath)
		if err != nil {
			logger.Warn("cover image upload failed, continuing without cover", "error", err)
		}
		input.CoverImageURL = coverURL
	}

	return s.CreateUser(ctx, input)
}

// CreateUser validates and persists a user with a freshly hashed password.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (models.User, error) {
	in.Username = normalizeUsername(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)

	if err := validateNewUser(in); err != nil {
		return models.User{}, err
	}
	if in.AvatarURL == "" {
		return models.User{}, apperr.Validation("avatar file is required", "avatar")
	}
	if err := s.ensureAvailable(ctx, in.Username, in.Email); err != nil {
		return models.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now()
	user := models.User{
		ID:            s.newID(),
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  hash,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: strings.TrimSpace(in.CoverImageURL),
		WatchHistory:  []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, apperr.Conflict("user with email or username already exists")
		}
		return models.User{}, apperr.Wrap(err, "create user")
	}

	logging.FromContext(ctx).Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// FindByIdentifier looks a user up by username or email.
func (s *Service) FindByIdentifier(ctx context.Context, username, email string) (models.User, error) {
	user, err := s.users.FindByUsernameOrEmail(ctx, normalizeUsername(username), normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.NotFound("user does not exist")
		}
		return models.User{}, apperr.Wrap(err, "find user")
	}
	return user, nil
}

// FindByID loads a user by id.
func (s *Service) FindByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.NotFound("user does not exist")
		}
		return models.User{}, apperr.Wrap(err, "find user")
	}
	return user, nil
}

// Authenticate resolves the identifier and checks the password. Unknown
// identifiers and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, email, password string) (models.User, error) {
	if normalizeUsername(username) == "" && normalizeEmail(email) == "" {
		return models.User{}, apperr.Validation("username or email is required", "username", "email")
	}
	if password == "" {
		return models.User{}, apperr.Validation("password is required", "password")
	}

	user, err := s.FindByIdentifier(ctx, username, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("invalid user credentials")
		}
		return models.User{}, err
	}

	if !VerifyPassword(user, password) {
		logging.FromContext(ctx).Warn("password mismatch", "user_id", user.ID)
		return models.User{}, apperr.Unauthorized("invalid user credentials")
	}
	return user, nil
}

// VerifyPassword reports whether candidate matches the user's password hash.
// It never returns an error; any failure is a mismatch.
func VerifyPassword(user models.User, candidate string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

// ProfileChanges lists the account details a user may edit. Nil fields are kept.
type ProfileChanges struct {
	FullName *string
	Email    *string
}

// UpdateProfile applies the supplied account details.
func (s *Service) UpdateProfile(ctx context.Context, userID string, changes ProfileChanges) (models.User, error) {
	update := repositories.ProfileUpdate{UpdatedAt: s.now()}

	if changes.FullName != nil {
		name := strings.TrimSpace(*changes.FullName)
		if name == "" {
			return models.User{}, apperr.Validation("full name must not be empty", "fullName")
		}
		update.FullName = &name
	}
	if changes.Email != nil {
		email := normalizeEmail(*changes.Email)
		if err := validateEmail(email); err != nil {
			return models.User{}, err
		}
		update.Email = &email
	}
	if update.FullName == nil && update.Email == nil {
		return models.User{}, apperr.Validation("full name or email is required", "fullName", "email")
	}

	return s.applyUpdate(ctx, userID, update)
}

// UpdateAvatar uploads the file at localPath and makes it the user's avatar.
func (s *Service) UpdateAvatar(ctx context.Context, userID, localPath string) (models.User, error) {
	url, err := s.uploadRequired(ctx, localPath, "avatar")
	if err != nil {
		return models.User{}, err
	}
	return s.applyUpdate(ctx, userID, repositories.ProfileUpdate{AvatarURL: &url, UpdatedAt: s.now()})
}

// UpdateCoverImage uploads the file at localPath and makes it the user's cover image.
func (s *Service) UpdateCoverImage(ctx context.Context, userID, localPath string) (models.User, error) {
	url, err := s.uploadRequired(ctx, localPath, "coverImage")
	if err != nil {
		return models.User{}, err
	}
	return s.applyUpdate(ctx, userID, repositories.ProfileUpdate{CoverImageURL: &url, UpdatedAt: s.now()})
}

// ChangePassword replaces the password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperr.Validation("old and new password are required", "oldPassword", "newPassword")
	}

	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(user, oldPassword) {
		return apperr.Unauthorized("invalid old password")
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, hash, s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.Wrap(err, "update password")
	}
	return nil
}

func (s *Service) applyUpdate(ctx context.Context, userID string, update repositories.ProfileUpdate) (models.User, error) {
	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return models.User{}, apperr.NotFound("user does not exist")
		case errors.Is(err, repositories.ErrConflict):
			return models.User{}, apperr.Conflict("email is already in use")
		}
		return models.User{}, apperr.Wrap(err, "update user")
	}
	return user, nil
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	_, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return apperr.Conflict("user with email or username already exists")
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	default:
		return apperr.Wrap(err, "check existing user")
	}
}

func (s *Service) uploadRequired(ctx context.Context, localPath, field string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", apperr.Validation(field+" file is missing", field)
	}
	url, err := s.upload(ctx, localPath)
	if err != nil || url == "" {
		logging.FromContext(ctx).Warn("media upload failed", "field", field, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.Wrap(err, "upload "+field)
		}
		return "", apperr.Validation("error while uploading "+field, field)
	}
	return url, nil
}

func (s *Service) upload(ctx context.Context, localPath string) (string, error) {
	if s.media == nil {
		return "", errors.New("media registrar not configured")
	}
	if s.mediaTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.mediaTimeout)
		defer cancel()
	}
	return s.media.Upload(ctx, localPath)
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Validation("password must be at most 72 bytes", "password")
		}
		return "", apperr.Internal("hash password", err)
	}
	return string(hashed), nil
}

func validateNewUser(in NewUser) error {
	var missing []string
	if in.FullName == "" {
		missing = append(missing, "fullName")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return apperr.Validation("all fields are required", missing...)
	}
	return validateEmail(in.Email)
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email must not be empty", "email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.Validation("invalid email address", "email")
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
