package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/httpserver"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
)

// Run bootstraps the VideoTube backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

// newHandler wraps the routes with the cross-cutting middleware. Metrics sit
// directly on the mux so they can read the matched route pattern.
func newHandler(mux *http.ServeMux, cfg config.Config, metrics *middleware.Metrics, logger *slog.Logger) http.Handler {
	var handler http.Handler = metrics.Instrument(mux)
	handler = middleware.BodyLimit(cfg.BodyLimitBytes)(handler)
	handler = middleware.CORS(cfg.CORSOrigin)(handler)
	handler = middleware.Recover(handler)
	return middleware.RequestLogger(logger)(handler)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	metrics := middleware.NewMetrics()
	deps, cleanup, err := buildDependencies(ctx, st, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("release dependencies", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	srv := httpserver.New(cfg.AppPort, newHandler(mux, cfg, metrics, logger), httpserver.Options{
		WriteTimeout: cfg.RequestTimeout + cfg.MediaUploadTimeout,
		ErrorLog:     logger,
	})

	logger.Info("starting http server", "addr", srv.Addr(), "store", cfg.Store)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrate requires the %s store, got %q", config.StorePostgres, cfg.Store)
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, command); err != nil {
		return err
	}
	logger.Info("migrations finished", "command", command)
	return nil
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx = logging.WithLogger(ctx, logger)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := buildServices(ctx, st, cfg)
	if err != nil {
		return err
	}

	report, err := seed(ctx, st, svc, cfg.SeedUsers, cfg.SeedPassword)
	if err != nil {
		return err
	}
	logger.Info("seed finished", "users", report.users, "videos", report.videos, "subscriptions", report.subscriptions)
	return nil
}
