package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config describes how to reach the backing database.
type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retry           RetryConfig
}

// ConnectionPool manages database connections with transaction support.
type ConnectionPool struct {
	db      *sql.DB
	dialect Dialect
	mapper  *ErrorMapper
	logger  *slog.Logger
}

// NewConnectionPool opens the database and waits until it answers a ping.
func NewConnectionPool(ctx context.Context, cfg Config, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := cfg.DSN
	if cfg.Dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pool := &ConnectionPool{db: db, dialect: cfg.Dialect, mapper: NewErrorMapper(), logger: logger}

	retry := NewRetryHelper(cfg.Retry)
	if err := retry.WithRetry(ctx, func() error { return pool.Ping(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// sqliteDSN adds the pragmas the store relies on unless the caller set them.
// _txlock=immediate makes every write transaction take the database lock up
// front, which serialises check-then-insert sequences.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:reservations.db"
	}
	var params []string
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma="+url.QueryEscape("foreign_keys(1)"))
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma="+url.QueryEscape("busy_timeout(5000)"))
	}
	if !strings.Contains(dsn, "journal_mode") {
		params = append(params, "_pragma="+url.QueryEscape("journal_mode(WAL)"))
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// DB returns the underlying database connection.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Dialect reports the SQL flavour of the pool.
func (cp *ConnectionPool) Dialect() Dialect {
	return cp.dialect
}

// Close closes the connection pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	if err := cp.db.PingContext(ctx); err != nil {
		return cp.mapper.MapError(err)
	}
	return nil
}

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txHandle struct {
	tx       *sql.Tx
	readOnly bool
}

// executor returns the transaction carried by ctx, or the pool itself.
func (cp *ConnectionPool) executor(ctx context.Context) executor {
	if handle, ok := ctx.Value(txKey{}).(*txHandle); ok {
		return handle.tx
	}
	return cp.db
}

// TransactionFunc represents a function that executes within a transaction.
type TransactionFunc func(ctx context.Context) error

// DoSerializable runs fn inside a serializable write transaction. Nested calls
// join the outer transaction.
func (cp *ConnectionPool) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	if cp.dialect == DialectSQLite {
		// SQLite is serializable by construction; the immediate begin mode comes from the DSN.
		opts = nil
	}
	return cp.withTransaction(ctx, opts, false, fn)
}

// DoReadOnly runs fn inside a read-only snapshot. On SQLite the transaction
// begins deferred despite _txlock=immediate, so readers never take the write
// lock and run alongside a writer under WAL.
func (cp *ConnectionPool) DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	if cp.dialect == DialectSQLite {
		opts = &sql.TxOptions{ReadOnly: true}
	}
	return cp.withTransaction(ctx, opts, true, fn)
}

func (cp *ConnectionPool) withTransaction(ctx context.Context, opts *sql.TxOptions, readOnly bool, fn TransactionFunc) (err error) {
	if handle, ok := ctx.Value(txKey{}).(*txHandle); ok {
		if handle.readOnly && !readOnly {
			return fmt.Errorf("sqlstore: write transaction requested inside read-only transaction")
		}
		return fn(ctx)
	}

	tx, err := cp.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", cp.mapper.MapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				cp.logger.Error("rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, &txHandle{tx: tx, readOnly: readOnly})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", cp.mapper.MapError(err))
	}
	return nil
}

// RetryConfig configures retry behavior for connection establishment.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries transient storage failures with exponential backoff.
type RetryHelper struct {
	config RetryConfig
}

// NewRetryHelper creates a new retry helper. A zero config means a single attempt.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryHelper{config: config}
}

// WithRetry executes fn, retrying while it reports an unavailable store.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if rh.config.MaxDelay > 0 && delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
