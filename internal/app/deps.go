package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/media"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/profile"
	"github.com/videotube/backend/internal/repositories"
)

// stores groups the repositories backing one process.
type stores struct {
	users  repositories.UserRepository
	subs   repositories.SubscriptionRepository
	videos repositories.VideoRepository
	health handlers.HealthChecker
	close  func()
}

func memoryStores() stores {
	mem := repositories.NewMemoryStore()
	return stores{
		users:  mem.Users(),
		subs:   mem.Subscriptions(),
		videos: mem.Videos(),
		close:  func() {},
	}
}

func postgresStores(pool db.Pool) stores {
	return stores{
		users:  repositories.NewPostgresUserRepository(pool),
		subs:   repositories.NewPostgresSubscriptionRepository(pool),
		videos: repositories.NewPostgresVideoRepository(pool),
		health: pool,
		close:  pool.Close,
	}
}

// openStores connects the configured backend.
func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memoryStores(), nil
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		return postgresStores(pool), nil
	default:
		return stores{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// services are the domain components shared by serve and seed.
type services struct {
	accounts *accounts.Service
	tokens   *auth.Service
	guard    *auth.Guard
	profiles *profile.Aggregator
}

func buildServices(ctx context.Context, st stores, cfg config.Config) (services, error) {
	store, err := newMediaStore(ctx, cfg)
	if err != nil {
		return services{}, err
	}
	registrar := media.NewRegistrar(store, "users")

	tokens, err := auth.NewService(st.users, auth.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return services{}, err
	}

	return services{
		accounts: accounts.NewService(st.users, registrar, accounts.WithMediaTimeout(cfg.MediaUploadTimeout)),
		tokens:   tokens,
		guard:    auth.NewGuard(tokens, st.users),
		profiles: profile.NewAggregator(st.users, st.subs, st.videos),
	}, nil
}

func newMediaStore(ctx context.Context, cfg config.Config) (media.Store, error) {
	if cfg.ObjectStore.Enabled() {
		store, err := media.NewS3Store(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("configure object store: %w", err)
		}
		return store, nil
	}
	return media.NewDiskStore(cfg.PublicDir, "/static")
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases the rate limiter.
func buildDependencies(ctx context.Context, st stores, cfg config.Config, metrics *middleware.Metrics, logger *slog.Logger) (handlers.Dependencies, func() error, error) {
	svc, err := buildServices(ctx, st, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	limiter, cleanup := newRateLimiter(ctx, cfg.RateLimit, logger)

	return handlers.Dependencies{
		Accounts: svc.accounts,
		Tokens:   svc.tokens,
		Guard:    svc.guard,
		Profiles: svc.profiles,
		Health:   st.health,
		Limiter:  limiter,
		Metrics:  metrics,
		Cookies: handlers.CookieOptions{
			Secure:   cfg.Cookie.Secure,
			SameSite: handlers.ParseSameSite(cfg.Cookie.SameSite),
			Domain:   cfg.Cookie.Domain,
		},
		Uploads:        handlers.Uploads{Dir: cfg.UploadDir, MaxBytes: cfg.MaxUploadBytes},
		PublicDir:      cfg.PublicDir,
		RequestTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.RequestTimeout + cfg.MediaUploadTimeout,
	}, cleanup, nil
}

// newRateLimiter prefers the shared Redis limiter and falls back to per-process
// buckets when Redis is not configured or unreachable.
func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) (middleware.RateLimiter, func() error) {
	if cfg.RedisAddr != "" {
		limiter, err := middleware.NewRedisRateLimiter(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Requests, cfg.Window, logger)
		if err == nil {
			return limiter, limiter.Close
		}
		logger.Warn("redis rate limiter unavailable, using in-process limiter", "addr", cfg.RedisAddr, "error", err)
	}
	return middleware.NewIPRateLimiter(cfg.Requests, cfg.Window, cfg.Burst, 10*cfg.Window), func() error { return nil }
}
