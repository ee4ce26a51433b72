package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/videotube/backend/internal/db/migrations"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// goose entry points, swapped out in tests.
var (
	gooseUp     = func(ctx context.Context, db *sql.DB, dir string) error { return goose.UpContext(ctx, db, dir) }
	gooseDown   = func(ctx context.Context, db *sql.DB, dir string) error { return goose.DownContext(ctx, db, dir) }
	gooseStatus = func(ctx context.Context, db *sql.DB, dir string) error { return goose.StatusContext(ctx, db, dir) }
)

// Migrate runs the embedded goose migrations against pool. Supported commands
// are "up" (the default), "down" and "status".
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	return MigrateDB(ctx, sqlDB, command)
}

// MigrateDB is Migrate for callers that already hold a database/sql handle.
func MigrateDB(ctx context.Context, sqlDB *sql.DB, command string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch command {
	case "up", "":
		return withRetry(ctx, "migrate up", func() error { return gooseUp(ctx, sqlDB, ".") })
	case "down":
		return withRetry(ctx, "migrate down", func() error { return gooseDown(ctx, sqlDB, ".") })
	case "status":
		return gooseStatus(ctx, sqlDB, ".")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

func withRetry(ctx context.Context, name string, fn func() error) error {
	var err error
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
			if backoff > migrationMaxBackoff {
				backoff = migrationMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetryMigration(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		slog.WarnContext(ctx, "transient migration error", "step", name, "attempt", attempt+1, "max_attempts", migrationMaxRetries, "error", err)
	}

	return fmt.Errorf("%s: exceeded max retries (%d): %w", name, migrationMaxRetries, err)
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	return errors.Is(err, pgx.ErrTxClosed)
}
