// Package profile computes the derived channel and watch-history views.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

// Aggregator composes users, subscriptions and videos into read views.
type Aggregator struct {
	users         repositories.UserRepository
	subscriptions repositories.SubscriptionRepository
	videos        repositories.VideoRepository
}

// NewAggregator constructs an Aggregator over the given repositories.
func NewAggregator(users repositories.UserRepository, subs repositories.SubscriptionRepository, videos repositories.VideoRepository) *Aggregator {
	if users == nil || subs == nil || videos == nil {
		panic("profile: repositories must not be nil")
	}
	return &Aggregator{users: users, subscriptions: subs, videos: videos}
}

// ChannelProfile returns the channel view of targetUsername as seen by viewerID.
// All three subscription figures come from one snapshot of the relation.
func (a *Aggregator) ChannelProfile(ctx context.Context, viewerID, targetUsername string) (models.ChannelProfile, error) {
	username := strings.ToLower(strings.TrimSpace(targetUsername))
	if username == "" {
		return models.ChannelProfile{}, apperr.Validation("username is missing", "username")
	}

	ctx, span := logging.StartSpan(ctx, "profile.channel")
	defer span.End()

	target, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Wrap(err, "load channel")
	}

	var stats channelStats
	err = a.subscriptions.Snapshot(ctx, func(ctx context.Context, r repositories.SubscriptionReader) error {
		subscribers, err := r.FindByChannel(ctx, target.ID)
		if err != nil {
			return err
		}
		subscribedTo, err := r.FindBySubscriber(ctx, target.ID)
		if err != nil {
			return err
		}
		stats = computeStats(subscribers, subscribedTo, viewerID)
		return nil
	})
	if err != nil {
		return models.ChannelProfile{}, apperr.Wrap(err, "load subscriptions")
	}

	return models.ChannelProfile{
		FullName:             target.FullName,
		Username:             target.Username,
		Email:                target.Email,
		AvatarURL:            target.AvatarURL,
		CoverImageURL:        target.CoverImageURL,
		SubscriberCount:      stats.subscribers,
		SubscribedToCount:    stats.subscribedTo,
		IsSubscribedByViewer: stats.viewerSubscribed,
	}, nil
}

type channelStats struct {
	subscribers      int
	subscribedTo     int
	viewerSubscribed bool
}

// computeStats counts distinct subscribers and distinct channels so duplicate
// rows in the store never inflate the figures.
func computeStats(subscribers, subscribedTo []models.Subscription, viewerID string) channelStats {
	subscriberSet := make(map[string]struct{}, len(subscribers))
	for _, sub := range subscribers {
		subscriberSet[sub.SubscriberID] = struct{}{}
	}
	channelSet := make(map[string]struct{}, len(subscribedTo))
	for _, sub := range subscribedTo {
		channelSet[sub.ChannelID] = struct{}{}
	}

	_, viewerSubscribed := subscriberSet[viewerID]
	return channelStats{
		subscribers:      len(subscriberSet),
		subscribedTo:     len(channelSet),
		viewerSubscribed: viewerID != "" && viewerSubscribed,
	}
}

// WatchHistory resolves the user's watch history in stored order. Entries whose
// video or owner no longer exists are skipped.
func (a *Aggregator) WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	ctx, span := logging.StartSpan(ctx, "profile.watch_history")
	defer span.End()

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.Wrap(err, "load user")
	}

	entries := make([]models.WatchHistoryEntry, 0, len(user.WatchHistory))
	if len(user.WatchHistory) == 0 {
		return entries, nil
	}

	videos, err := a.videos.FindByIDs(ctx, uniqueIDs(user.WatchHistory))
	if err != nil {
		return nil, apperr.Wrap(err, "load watched videos")
	}
	videoByID := make(map[string]models.Video, len(videos))
	ownerIDs := make([]string, 0, len(videos))
	for _, v := range videos {
		videoByID[v.ID] = v
		ownerIDs = append(ownerIDs, v.OwnerID)
	}

	owners, err := a.users.FindByIDs(ctx, uniqueIDs(ownerIDs))
	if err != nil {
		return nil, apperr.Wrap(err, "load video owners")
	}
	ownerByID := make(map[string]models.Owner, len(owners))
	for _, o := range owners {
		ownerByID[o.ID] = models.Owner{FullName: o.FullName, Username: o.Username, AvatarURL: o.AvatarURL}
	}

	logger := logging.FromContext(ctx)
	for _, id := range user.WatchHistory {
		video, ok := videoByID[id]
		if !ok {
			logger.Debug("skipping stale watch history entry", "video_id", id)
			continue
		}
		owner, ok := ownerByID[video.OwnerID]
		if !ok {
			logger.Debug("skipping watch history entry with missing owner", "video_id", id, "owner_id", video.OwnerID)
			continue
		}
		entries = append(entries, models.WatchHistoryEntry{
			ID:          video.ID,
			VideoFile:   video.VideoFile,
			Thumbnail:   video.Thumbnail,
			Title:       video.Title,
			Description: video.Description,
			Duration:    video.Duration,
			Views:       video.Views,
			IsPublished: video.IsPublished,
			CreatedAt:   video.CreatedAt,
			Owner:       owner,
		})
	}

	return entries, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
