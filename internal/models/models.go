package models

import "time"

// User represents an account record as persisted by the store.
//
// PasswordHash and RefreshToken never leave the service layer; handlers render
// PublicUser instead.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	// RefreshToken is nil when the user has no refreshable session.
	RefreshToken *string
	WatchHistory []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public strips credential material from the record.
func (u User) Public() PublicUser {
	history := u.WatchHistory
	if history == nil {
		history = []string{}
	}
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		WatchHistory:  history,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// PublicUser is the outward representation of a User.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	WatchHistory  []string  `json:"watchHistory"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Subscription links a subscriber to the channel they follow.
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// Video is a content record owned by a user.
type Video struct {
	ID          string
	OwnerID     string
	VideoFile   string
	Thumbnail   string
	Title       string
	Description string
	Duration    float64
	Views       int64
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Owner is the projection of a video owner exposed in watch history.
type Owner struct {
	FullName  string `json:"fullName"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

// WatchHistoryEntry is a video joined with its single owner.
type WatchHistoryEntry struct {
	ID          string    `json:"id"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	Owner       Owner     `json:"owner"`
}

// ChannelProfile is the derived view of a user seen as a channel.
type ChannelProfile struct {
	FullName             string `json:"fullName"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	AvatarURL            string `json:"avatar"`
	CoverImageURL        string `json:"coverImage"`
	SubscriberCount      int    `json:"subscribersCount"`
	SubscribedToCount    int    `json:"channelsSubscribedToCount"`
	IsSubscribedByViewer bool   `json:"isSubscribed"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"-"`
}
