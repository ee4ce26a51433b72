package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type seedReport struct {
	users         int
	videos        int
	subscriptions int
}

// seed creates one account and one published video per username, subscribes
// every user to every other channel and fills watch history with the other
// users' videos. Ids are derived from usernames so repeated runs only add
// what is missing.
func seed(ctx context.Context, st stores, svc services, usernames []string, password string) (seedReport, error) {
	var report seedReport
	if len(usernames) == 0 {
		return report, errors.New("seed: no users configured")
	}

	logger := logging.FromContext(ctx)
	users := make([]models.User, 0, len(usernames))
	created := make(map[string]bool, len(usernames))

	for _, name := range usernames {
		user, err := svc.accounts.CreateUser(ctx, accounts.NewUser{
			Username:  name,
			Email:     name + "@videotube.dev",
			FullName:  "Demo " + name,
			Password:  password,
			AvatarURL: "/static/seed/" + name + ".png",
		})
		switch {
		case err == nil:
			report.users++
			created[user.ID] = true
		case errors.Is(err, apperr.ErrConflict):
			user, err = svc.accounts.FindByIdentifier(ctx, name, "")
			if err != nil {
				return report, fmt.Errorf("seed user %s: %w", name, err)
			}
			logger.Debug("seed user exists", "username", user.Username)
		default:
			return report, fmt.Errorf("seed user %s: %w", name, err)
		}
		users = append(users, user)
	}

	now := time.Now().UTC()
	for i, user := range users {
		err := st.videos.Create(ctx, models.Video{
			ID:          videoID(user),
			OwnerID:     user.ID,
			VideoFile:   "/static/seed/" + user.Username + ".mp4",
			Thumbnail:   "/static/seed/" + user.Username + ".jpg",
			Title:       "Welcome to " + user.Username + "'s channel",
			Description: "Seeded demo video",
			Duration:    float64(60 * (i + 1)),
			IsPublished: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		added, err := inserted(err)
		if err != nil {
			return report, fmt.Errorf("seed video for %s: %w", user.Username, err)
		}
		if added {
			report.videos++
		}
	}

	for _, subscriber := range users {
		for _, channel := range users {
			if subscriber.ID == channel.ID {
				continue
			}
			err := st.subs.Create(ctx, models.Subscription{
				ID:           "seed-" + subscriber.Username + "-" + channel.Username,
				SubscriberID: subscriber.ID,
				ChannelID:    channel.ID,
				CreatedAt:    now,
			})
			added, err := inserted(err)
			if err != nil {
				return report, fmt.Errorf("seed subscription %s -> %s: %w", subscriber.Username, channel.Username, err)
			}
			if added {
				report.subscriptions++
			}

			if created[subscriber.ID] {
				if err := st.users.AppendWatchHistory(ctx, subscriber.ID, videoID(channel)); err != nil {
					return report, fmt.Errorf("seed watch history for %s: %w", subscriber.Username, err)
				}
			}
		}
	}

	return report, nil
}

func videoID(owner models.User) string {
	return "seed-video-" + owner.Username
}

// inserted treats a conflict as an already seeded row.
func inserted(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrConflict):
		return false, nil
	default:
		return false, err
	}
}
