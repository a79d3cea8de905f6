package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/room-reservations/internal/scheduler"
)

func TestClockStartsAtReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()))
}

func TestClockMovesInSlots(t *testing.T) {
	clock := NewClock(time.Time{})
	nowFn := clock.NowFunc()

	got := clock.AdvanceSlots(2)
	assert.True(t, got.Equal(SlotAt(0, 11)), "got %v", got)
	assert.True(t, nowFn().Equal(got))

	got = clock.SetSlot(2, 14)
	assert.Equal(t, "2025-03-12", scheduler.DateOf(got))
	assert.Equal(t, 14, scheduler.HourOf(nowFn()))

	clock.Advance(30 * time.Minute)
	assert.True(t, clock.Now().Equal(SlotAt(2, 14).Add(30*time.Minute)))
}

func TestClockToSlotEnd(t *testing.T) {
	clock := NewClock(time.Time{})
	start := SlotAt(1, 9)

	end := clock.ToSlotEnd(start)

	assert.True(t, end.Equal(SlotAt(1, 10)))
	assert.True(t, clock.Now().Equal(end))
}
