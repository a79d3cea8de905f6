package testfixtures

import (
	"fmt"
	"sync"
)

// Prefixes used for deterministic identifiers of each entity kind.
const (
	ReservationIDPrefix = "res"
	ArchiveIDPrefix     = "arc"
	EventIDPrefix       = "evt"
)

// IDGenerator issues sequential identifiers such as "res-1" or "evt-3". Every
// prefix counts on its own, so emitting an extra event does not shift the ids
// of reservations created later in a test.
type IDGenerator struct {
	mu       sync.Mutex
	prefix   string
	counters map[string]uint64
}

// NewIDGenerator returns a generator whose Next uses prefix ("id" when empty).
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, counters: make(map[string]uint64)}
}

// Next returns the next identifier for the default prefix.
func (g *IDGenerator) Next() string {
	return g.next(g.prefix)
}

// NextFunc returns Next for injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// For returns a generator function bound to prefix.
func (g *IDGenerator) For(prefix string) func() string {
	return func() string { return g.next(prefix) }
}

// Reset restarts every sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counters = make(map[string]uint64)
	g.mu.Unlock()
}

func (g *IDGenerator) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
}
