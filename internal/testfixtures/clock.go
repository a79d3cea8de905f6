package testfixtures

import (
	"sync"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// Clock is a settable time source shared by services, the sweeper and the
// relay under test. It moves in slot steps as well as arbitrary durations.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

// Now returns the clock reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now for injection; a nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// AdvanceSlots moves the clock forward by n booking slots.
func (c *Clock) AdvanceSlots(n int) time.Time {
	return c.Advance(time.Duration(n) * scheduler.SlotDuration)
}

// SetSlot moves the clock to SlotAt(dayOffset, hour).
func (c *Clock) SetSlot(dayOffset, hour int) time.Time {
	t := SlotAt(dayOffset, hour)
	c.Set(t)
	return t
}

// ToSlotEnd moves the clock to the end of the slot beginning at start, the
// first instant at which a pending booking in that slot is due to expire.
func (c *Clock) ToSlotEnd(start time.Time) time.Time {
	end := scheduler.SlotEnd(start)
	c.Set(end)
	return end
}
