package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/persistence"
)

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"sqlite":      DialectSQLite,
		"SQLite3":     DialectSQLite,
		"postgres":    DialectPostgres,
		" postgresql": DialectPostgres,
		"pq":          DialectPostgres,
	}
	for input, want := range cases {
		got, err := ParseDialect(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSNAddsPragmas(t *testing.T) {
	dsn := sqliteDSN("file:test.db")
	assert.Contains(t, dsn, "file:test.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys")
	assert.Contains(t, dsn, "busy_timeout")

	custom := sqliteDSN("file:test.db?_txlock=deferred")
	assert.Contains(t, custom, "_txlock=deferred")
	assert.NotContains(t, custom, "_txlock=immediate")
	assert.Contains(t, custom, "&_pragma=")

	assert.Contains(t, sqliteDSN(""), "file:reservations.db")
}

func TestEncodeTimeIsLexicallyOrdered(t *testing.T) {
	zone := time.FixedZone("UTC+8", 8*60*60)
	early := time.Date(2025, time.March, 10, 9, 0, 0, 0, zone)
	late := early.Add(time.Hour)

	assert.Equal(t, "2025-03-10T01:00:00Z", DialectSQLite.encodeTime(early))
	assert.Less(t, DialectSQLite.encodeTime(early).(string), DialectSQLite.encodeTime(late).(string))
	assert.Equal(t, early.UTC(), DialectPostgres.encodeTime(early))
	assert.Nil(t, DialectSQLite.encodeOptionalTime(nil))
}

func TestTimeColumnScan(t *testing.T) {
	var got time.Time
	require.NoError(t, scanTime(&got).Scan("2025-03-10T01:00:00Z"))
	assert.True(t, got.Equal(time.Date(2025, time.March, 10, 1, 0, 0, 0, time.UTC)))

	want := time.Date(2025, time.March, 11, 2, 0, 0, 0, time.UTC)
	require.NoError(t, scanTime(&got).Scan(want))
	assert.True(t, got.Equal(want))
}

func TestErrorMapper(t *testing.T) {
	mapper := NewErrorMapper()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "already mapped", err: fmt.Errorf("wrapped: %w", persistence.ErrStaleVersion), want: persistence.ErrStaleVersion},
		{name: "deadline", err: context.DeadlineExceeded, want: persistence.ErrUnavailable},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, want: persistence.ErrDuplicate},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, want: persistence.ErrForeignKeyViolation},
		{name: "pq check", err: &pq.Error{Code: "23514"}, want: persistence.ErrConstraintViolation},
		{name: "pq serialization", err: &pq.Error{Code: "40001"}, want: persistence.ErrUnavailable},
		{name: "pq connection", err: &pq.Error{Code: "08006"}, want: persistence.ErrUnavailable},
		{name: "sqlite unique text", err: errors.New("UNIQUE constraint failed: rooms.floor, rooms.name"), want: persistence.ErrDuplicate},
		{name: "sqlite check text", err: errors.New("CHECK constraint failed: end_at > start_at"), want: persistence.ErrConstraintViolation},
		{name: "sqlite busy text", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: persistence.ErrUnavailable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapper.MapError(tc.err)
			assert.ErrorIs(t, mapped, tc.want)
		})
	}

	assert.NoError(t, mapper.MapError(nil))
	plain := errors.New("syntax error")
	assert.Same(t, plain, mapper.MapError(plain))
}

func TestRetryHelper(t *testing.T) {
	t.Run("retries unavailable errors", func(t *testing.T) {
		helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2})
		calls := 0
		err := helper.WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return persistence.ErrUnavailable
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond})
		calls := 0
		err := helper.WithRetry(context.Background(), func() error {
			calls++
			return persistence.ErrDuplicate
		})
		assert.ErrorIs(t, err, persistence.ErrDuplicate)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond})
		calls := 0
		err := helper.WithRetry(context.Background(), func() error {
			calls++
			return persistence.ErrUnavailable
		})
		assert.ErrorIs(t, err, persistence.ErrUnavailable)
		assert.Equal(t, 3, calls)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Dialect: DialectSQLite, DSN: "file:" + t.TempDir() + "/migrate.db"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	rooms, err := store.ListRooms(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestReadOnlySnapshotDoesNotBlockWriters(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Dialect: DialectSQLite, DSN: "file:" + t.TempDir() + "/snapshot.db", MaxOpenConns: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	now := time.Date(2025, time.March, 10, 1, 0, 0, 0, time.UTC)
	err = store.DoReadOnly(ctx, func(ctx context.Context) error {
		before, err := store.ListRooms(ctx, false)
		require.NoError(t, err)
		require.Empty(t, before)

		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			done <- store.DoSerializable(writeCtx, func(ctx context.Context) error {
				return store.CreateRoom(ctx, persistence.Room{
					ID: "room-1", Floor: "Ground Floor", Name: "Discussion Room",
					Capacity: 8, Active: true, CreatedAt: now, UpdatedAt: now,
				})
			})
		}()
		require.NoError(t, <-done, "writer must not wait for the reader")

		during, err := store.ListRooms(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, during, "snapshot must not see the concurrent write")
		return nil
	})
	require.NoError(t, err)

	after, err := store.ListRooms(ctx, false)
	require.NoError(t, err)
	assert.Len(t, after, 1)
}
