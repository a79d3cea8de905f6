// Package migration applies the embedded schema for the reservation store.
//
// Migrations live under sql/{sqlite,postgres} and follow goose's naming
// convention: {version}_{description}.sql with "-- +goose Up" and
// "-- +goose Down" sections. Applied versions are tracked in goose's
// version table, so Up is idempotent.
//
// Example usage:
//
//	runner, err := migration.NewRunner(db, migration.DialectSQLite, logger)
//	if err != nil {
//		return err
//	}
//	if _, err := runner.Up(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
