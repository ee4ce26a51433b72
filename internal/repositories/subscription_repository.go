package repositories

import (
	"context"

	"github.com/videotube/backend/internal/models"
)

// SubscriptionReader exposes the read side of the subscription relation.
type SubscriptionReader interface {
	FindByChannel(ctx context.Context, channelID string) ([]models.Subscription, error)
	FindBySubscriber(ctx context.Context, subscriberID string) ([]models.Subscription, error)
}

// SubscriptionRepository defines data access for subscriptions.
type SubscriptionRepository interface {
	SubscriptionReader
	Create(ctx context.Context, sub models.Subscription) error
	// Snapshot runs fn against a reader that observes a single consistent
	// state of the relation for its whole duration.
	Snapshot(ctx context.Context, fn func(ctx context.Context, r SubscriptionReader) error) error
}
