package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/persistence/sqlstore"
)

// StoreHarness exposes a persistence.Store for integration-style tests.
type StoreHarness struct {
	Name  string
	Store persistence.Store

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated SQLite database in a temporary directory.
// The harness is closed automatically when the test ends.
func NewSQLiteHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "reservations.db")
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: "file:" + path}, nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &StoreHarness{
		Name:    "sqlite",
		Store:   store,
		cleanup: func() { _ = store.Close() },
	}
	tb.Cleanup(harness.Close)
	return harness
}

// NewMemoryHarness returns a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	store := memory.Open()
	harness := &StoreHarness{
		Name:    "memory",
		Store:   store,
		cleanup: func() { _ = store.Close() },
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Harnesses returns one harness per storage backend, for contract tests that
// must hold on every implementation.
func Harnesses(tb testing.TB) []*StoreHarness {
	tb.Helper()
	return []*StoreHarness{NewMemoryHarness(tb), NewSQLiteHarness(tb)}
}

// Seed writes rooms and persons into the harness store.
func (h *StoreHarness) Seed(tb testing.TB, rooms []RoomFixture, persons []PersonFixture) {
	tb.Helper()
	ctx := context.Background()
	for _, room := range rooms {
		if err := h.Store.CreateRoom(ctx, room.Persistence()); err != nil {
			tb.Fatalf("seed room %s: %v", room.ID, err)
		}
	}
	for _, person := range persons {
		if err := h.Store.UpsertPerson(ctx, person.Persistence()); err != nil {
			tb.Fatalf("seed person %s: %v", person.ID, err)
		}
	}
}
