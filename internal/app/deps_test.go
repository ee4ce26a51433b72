package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/media"
	"github.com/videotube/backend/internal/middleware"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.AccessTokenSecret = "access"
	cfg.RefreshTokenSecret = "refresh"
	cfg.UploadDir = t.TempDir()
	cfg.PublicDir = t.TempDir()
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDependencies(t *testing.T) {
	cfg := testConfig(t)

	st, err := openStores(context.Background(), cfg)
	require.NoError(t, err)
	defer st.close()

	deps, cleanup, err := buildDependencies(context.Background(), st, cfg, middleware.NewMetrics(), discardLogger())
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	defer func() { assert.NoError(t, cleanup()) }()

	assert.NotNil(t, deps.Accounts)
	assert.NotNil(t, deps.Tokens)
	assert.NotNil(t, deps.Guard)
	assert.NotNil(t, deps.Profiles)
	assert.NotNil(t, deps.Limiter)
	assert.NotNil(t, deps.Metrics)
	assert.Nil(t, deps.Health, "the memory store has nothing to ping")
	assert.Equal(t, cfg.UploadDir, deps.Uploads.Dir)
	assert.Equal(t, cfg.RequestTimeout+cfg.MediaUploadTimeout, deps.UploadTimeout)
	assert.True(t, deps.Cookies.Secure)
}

func TestBuildDependenciesRejectsInvalidTokenConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshTokenTTL = 0

	_, _, err := buildDependencies(context.Background(), memoryStores(), cfg, nil, discardLogger())
	assert.Error(t, err)
}

func TestOpenStoresUnknownKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "sqlite"

	_, err := openStores(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewMediaStore(t *testing.T) {
	cfg := testConfig(t)

	store, err := newMediaStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &media.DiskStore{}, store)

	cfg.ObjectStore = config.ObjectStoreConfig{
		Bucket:          "avatars",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
	store, err = newMediaStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &media.S3Store{}, store)
}

func TestNewRateLimiterFallsBackWithoutRedis(t *testing.T) {
	limiter, cleanup := newRateLimiter(context.Background(), config.RateLimitConfig{
		Requests:  2,
		Window:    time.Minute,
		Burst:     2,
		RedisAddr: "127.0.0.1:1",
	}, discardLogger())
	defer cleanup()

	assert.True(t, limiter.Allow("login:10.0.0.1"))
	assert.True(t, limiter.Allow("login:10.0.0.1"))
	assert.False(t, limiter.Allow("login:10.0.0.1"))
	assert.True(t, limiter.Allow("login:10.0.0.2"))
}
