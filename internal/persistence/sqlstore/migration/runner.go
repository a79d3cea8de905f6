package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var embedded embed.FS

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// ErrUnsupportedDialect is returned for dialects without embedded migrations.
var ErrUnsupportedDialect = errors.New("migration: unsupported dialect")

// AppliedMigration describes one migration executed by Up.
type AppliedMigration struct {
	Version       int64
	Source        string
	ExecutionTime time.Duration
}

// MigrationStatus reports the state of one known migration.
type MigrationStatus struct {
	Version   int64
	Source    string
	Applied   bool
	AppliedAt time.Time
}

// Runner applies embedded migrations through goose.
type Runner struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// NewRunner prepares a runner for db speaking dialect.
func NewRunner(db *sql.DB, dialect string, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var gooseDialect goose.Dialect
	switch dialect {
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}

	fsys, err := fs.Sub(embedded, "sql/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("migration: open embedded %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migration: create provider: %w", err)
	}
	return &Runner{provider: provider, logger: logger.With("component", "migration", "dialect", dialect)}, nil
}

// Up applies every pending migration and returns what was run.
func (r *Runner) Up(ctx context.Context) ([]AppliedMigration, error) {
	if err := r.LogCurrentSchemaVersion(ctx); err != nil {
		return nil, err
	}

	results, err := r.provider.Up(ctx)
	applied := make([]AppliedMigration, 0, len(results))
	for _, result := range results {
		if result == nil || result.Source == nil {
			continue
		}
		entry := AppliedMigration{
			Version:       result.Source.Version,
			Source:        result.Source.Path,
			ExecutionTime: result.Duration,
		}
		applied = append(applied, entry)
		r.logger.InfoContext(ctx, "migration applied",
			"version", entry.Version,
			"source", entry.Source,
			"duration", entry.ExecutionTime,
		)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "migration failed", "error", err)
		return applied, fmt.Errorf("migration: up: %w", err)
	}
	if len(applied) == 0 {
		r.logger.InfoContext(ctx, "schema up to date")
	}
	return applied, nil
}

// Status lists every embedded migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, status := range statuses {
		if status == nil || status.Source == nil {
			continue
		}
		out = append(out, MigrationStatus{
			Version:   status.Source.Version,
			Source:    status.Source.Path,
			Applied:   status.State == goose.StateApplied,
			AppliedAt: status.AppliedAt,
		})
	}
	return out, nil
}

// CurrentVersion returns the highest applied version, 0 for a fresh database.
func (r *Runner) CurrentVersion(ctx context.Context) (int64, error) {
	version, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("migration: current version: %w", err)
	}
	return version, nil
}

// LogCurrentSchemaVersion logs the version the database is at before migrating.
func (r *Runner) LogCurrentSchemaVersion(ctx context.Context) error {
	version, err := r.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "current schema version", "version", version)
	return nil
}
