package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/videotube/backend/internal/models"
)

// MemoryStore keeps users, videos and subscriptions in process memory. It
// enforces the same uniqueness rules as the PostgreSQL schema and is used by
// the "memory" store mode and by service tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	videos        map[string]models.Video
	subscriptions []models.Subscription
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]models.User),
		videos: make(map[string]models.Video),
	}
}

// Users returns the user repository view of the store.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

// Subscriptions returns the subscription repository view of the store.
func (s *MemoryStore) Subscriptions() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{s: s}
}

// Videos returns the video repository view of the store.
func (s *MemoryStore) Videos() *MemoryVideoRepository { return &MemoryVideoRepository{s: s} }

func cloneUser(u models.User) models.User {
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		u.RefreshToken = &token
	}
	if u.WatchHistory != nil {
		u.WatchHistory = append([]string(nil), u.WatchHistory...)
	}
	return u
}

// MemoryUserRepository implements UserRepository on a MemoryStore.
type MemoryUserRepository struct {
	s *MemoryStore
}

// Create stores a new user, rejecting a taken id, username or email with ErrConflict.
func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrConflict
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

// FindByID returns a copy of the user with the given id.
func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

// FindByUsername returns the user with the given normalized username.
func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindByUsernameOrEmail returns the oldest user matching either identifier.
func (r *MemoryUserRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var (
		match models.User
		found bool
	)
	for _, user := range r.s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			if !found || user.CreatedAt.Before(match.CreatedAt) {
				match, found = user, true
			}
		}
	}
	if !found {
		return models.User{}, ErrNotFound
	}
	return cloneUser(match), nil
}

// FindByIDs returns the users that exist among ids, skipping missing ones.
func (r *MemoryUserRepository) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var users []models.User
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := r.s.users[id]; ok {
			users = append(users, cloneUser(user))
		}
	}
	return users, nil
}

// UpdateProfile applies the non-nil fields of update and returns the result.
func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if update.Email != nil {
		for otherID, other := range r.s.users {
			if otherID != id && other.Email == *update.Email {
				return models.User{}, ErrConflict
			}
		}
		user.Email = *update.Email
	}
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.CoverImageURL != nil {
		user.CoverImageURL = *update.CoverImageURL
	}
	user.UpdatedAt = update.UpdatedAt
	r.s.users[id] = user
	return cloneUser(user), nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id, hash string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = updatedAt
	r.s.users[id] = user
	return nil
}

// SetRefreshToken overwrites the stored refresh token; nil clears it.
func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, id string, token *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	if token == nil {
		user.RefreshToken = nil
	} else {
		value := *token
		user.RefreshToken = &value
	}
	r.s.users[id] = user
	return nil
}

// CompareAndSwapRefreshToken installs next only while expected is stored.
func (r *MemoryUserRepository) CompareAndSwapRefreshToken(_ context.Context, id, expected, next string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	if user.RefreshToken == nil || *user.RefreshToken != expected {
		return ErrStaleToken
	}
	user.RefreshToken = &next
	r.s.users[id] = user
	return nil
}

// AppendWatchHistory adds videoID to the end of the user's history.
func (r *MemoryUserRepository) AppendWatchHistory(_ context.Context, userID, videoID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.WatchHistory = append(append([]string(nil), user.WatchHistory...), videoID)
	r.s.users[userID] = user
	return nil
}

// MemorySubscriptionRepository implements SubscriptionRepository on a MemoryStore.
type MemorySubscriptionRepository struct {
	s *MemoryStore
}

// Create stores a subscription between two existing users.
func (r *MemorySubscriptionRepository) Create(_ context.Context, sub models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[sub.SubscriberID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.s.users[sub.ChannelID]; !ok {
		return ErrNotFound
	}
	for _, existing := range r.s.subscriptions {
		if existing.ID == sub.ID || (existing.SubscriberID == sub.SubscriberID && existing.ChannelID == sub.ChannelID) {
			return ErrConflict
		}
	}
	r.s.subscriptions = append(r.s.subscriptions, sub)
	return nil
}

// FindByChannel lists the subscriptions to channelID.
func (r *MemorySubscriptionRepository) FindByChannel(_ context.Context, channelID string) ([]models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.filterSubscriptions(func(s models.Subscription) bool { return s.ChannelID == channelID }), nil
}

// FindBySubscriber lists the channels subscriberID follows.
func (r *MemorySubscriptionRepository) FindBySubscriber(_ context.Context, subscriberID string) ([]models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.filterSubscriptions(func(s models.Subscription) bool { return s.SubscriberID == subscriberID }), nil
}

// Snapshot holds the read lock for the duration of fn so writers cannot
// interleave between the reads fn performs.
func (r *MemorySubscriptionRepository) Snapshot(ctx context.Context, fn func(ctx context.Context, r SubscriptionReader) error) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return fn(ctx, lockedSubscriptionReader{s: r.s})
}

func (s *MemoryStore) filterSubscriptions(keep func(models.Subscription) bool) []models.Subscription {
	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	return out
}

// lockedSubscriptionReader reads without locking; the caller holds the lock.
type lockedSubscriptionReader struct {
	s *MemoryStore
}

func (r lockedSubscriptionReader) FindByChannel(_ context.Context, channelID string) ([]models.Subscription, error) {
	return r.s.filterSubscriptions(func(s models.Subscription) bool { return s.ChannelID == channelID }), nil
}

func (r lockedSubscriptionReader) FindBySubscriber(_ context.Context, subscriberID string) ([]models.Subscription, error) {
	return r.s.filterSubscriptions(func(s models.Subscription) bool { return s.SubscriberID == subscriberID }), nil
}

// MemoryVideoRepository implements VideoRepository on a MemoryStore.
type MemoryVideoRepository struct {
	s *MemoryStore
}

// Create stores a video owned by an existing user.
func (r *MemoryVideoRepository) Create(_ context.Context, video models.Video) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.videos[video.ID]; ok {
		return ErrConflict
	}
	if _, ok := r.s.users[video.OwnerID]; !ok {
		return ErrNotFound
	}
	r.s.videos[video.ID] = video
	return nil
}

// FindByIDs returns the videos that exist among ids.
func (r *MemoryVideoRepository) FindByIDs(_ context.Context, ids []string) ([]models.Video, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var videos []models.Video
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if video, ok := r.s.videos[id]; ok {
			videos = append(videos, video)
		}
	}
	return videos, nil
}

var _ UserRepository = (*MemoryUserRepository)(nil)
var _ SubscriptionRepository = (*MemorySubscriptionRepository)(nil)
var _ VideoRepository = (*MemoryVideoRepository)(nil)
