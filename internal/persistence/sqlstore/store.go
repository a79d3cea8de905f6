package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/sqlstore/migration"
)

// Store implements persistence.Store on SQLite or PostgreSQL.
type Store struct {
	*ConnectionPool
	sb sq.StatementBuilderType
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database described by cfg. Call Migrate before use on a
// fresh database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{ConnectionPool: pool, sb: pool.dialect.builder()}
}

func (s *Store) exec(ctx context.Context, query sq.Sqlizer) (sql.Result, error) {
	text, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build query: %w", err)
	}
	result, err := s.executor(ctx).ExecContext(ctx, text, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	return result, nil
}

func (s *Store) query(ctx context.Context, query sq.Sqlizer) (*sql.Rows, error) {
	text, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build query: %w", err)
	}
	rows, err := s.executor(ctx).QueryContext(ctx, text, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	return rows, nil
}

func (s *Store) queryRow(ctx context.Context, query sq.Sqlizer, dest ...any) error {
	text, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: build query: %w", err)
	}
	if err := s.executor(ctx).QueryRowContext(ctx, text, args...).Scan(dest...); err != nil {
		return s.mapper.MapError(err)
	}
	return nil
}

// requireAffected turns a zero-row write into ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Migrate applies the embedded schema migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	runner, err := migration.NewRunner(s.db, string(s.dialect), s.logger)
	if err != nil {
		return err
	}
	_, err = runner.Up(ctx)
	return err
}
