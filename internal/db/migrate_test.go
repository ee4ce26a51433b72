package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videotube/backend/internal/db/migrations"
)

func TestShouldRetryMigration(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"syntax", &pgconn.PgError{Code: "42601"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldRetryMigration(tc.err))
		})
	}
}

func TestMigrateDBRetriesTransientFailures(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	calls := 0
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	}

	require.NoError(t, MigrateDB(context.Background(), nil, "up"))
	assert.Equal(t, 2, calls)
}

func TestMigrateDBStopsOnPermanentFailure(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	calls := 0
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		calls++
		return &pgconn.PgError{Code: "42601", Message: "syntax error"}
	}

	err := MigrateDB(context.Background(), nil, "")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestMigrateDBUnknownCommand(t *testing.T) {
	err := MigrateDB(context.Background(), nil, "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00001_create_users.sql",
		"00002_create_videos.sql",
		"00003_create_subscriptions.sql",
	}, names)
}
