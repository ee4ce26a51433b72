package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsRepeatable(t *testing.T) {
	cfg := testConfig(t)
	st := memoryStores()
	svc, err := buildServices(context.Background(), st, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	names := []string{"alice", "bob", "carol"}

	report, err := seed(ctx, st, svc, names, "password123")
	require.NoError(t, err)
	assert.Equal(t, seedReport{users: 3, videos: 3, subscriptions: 6}, report)

	again, err := seed(ctx, st, svc, names, "password123")
	require.NoError(t, err)
	assert.Equal(t, seedReport{}, again)

	alice, err := svc.accounts.FindByIdentifier(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"seed-video-bob", "seed-video-carol"}, alice.WatchHistory)

	channel, err := svc.profiles.ChannelProfile(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, channel.SubscriberCount)
	assert.Equal(t, 2, channel.SubscribedToCount)
	assert.True(t, channel.IsSubscribedByViewer)

	history, err := svc.profiles.WatchHistory(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "bob", history[0].Owner.Username)

	_, err = svc.accounts.Authenticate(ctx, "carol", "", "password123")
	assert.NoError(t, err)
}

func TestSeedRequiresUsers(t *testing.T) {
	cfg := testConfig(t)
	st := memoryStores()
	svc, err := buildServices(context.Background(), st, cfg)
	require.NoError(t, err)

	_, err = seed(context.Background(), st, svc, nil, "x")
	assert.Error(t, err)
}
