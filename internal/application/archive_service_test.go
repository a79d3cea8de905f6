package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

func TestArchiveServiceRoundTrip(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()

	original, err := h.reservations.Create(ctx, ownerPrincipal, bookingRequest("owner-1", 10, 9, "2021-00001", "2021-00002"))
	require.NoError(t, err)
	original, err = h.reservations.SetStatus(ctx, adminPrincipal, original.ID, "rejected")
	require.NoError(t, err)

	archived, err := h.archive.Archive(ctx, adminPrincipal, original.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, archived.ArchiveID)
	assert.True(t, archived.ArchivedAt.Equal(h.clock.Now()))

	_, err = h.store.GetReservation(ctx, original.ID)
	require.ErrorIs(t, err, persistence.ErrNotFound)

	listed, err := h.archive.ListArchived(ctx, adminPrincipal)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	restored, err := h.archive.Restore(ctx, adminPrincipal, archived.ArchiveID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Floor, restored.Floor)
	assert.Equal(t, original.RoomName, restored.RoomName)
	assert.True(t, original.Start.Equal(restored.Start))
	assert.True(t, original.End.Equal(restored.End))
	assert.Equal(t, original.Purpose, restored.Purpose)
	assert.Equal(t, original.Participants, restored.Participants)
	assert.Equal(t, original.Date, restored.Date)
	assert.Equal(t, scheduler.StatusRejected, restored.Status)

	_, err = h.archive.GetArchived(ctx, adminPrincipal, archived.ArchiveID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveServiceArchive(t *testing.T) {
	t.Parallel()

	t.Run("requires a terminal status", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		h.store.put(stored("r-1", "owner-1", discussionRoom, at(10, 9), scheduler.StatusApproved))

		_, err := h.archive.Archive(context.Background(), adminPrincipal, "r-1")
		require.ErrorIs(t, err, ErrInvalidTransition)

		_, err = h.store.GetReservation(context.Background(), "r-1")
		require.NoError(t, err)
	})

	t.Run("requires an administrator", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		h.store.put(stored("r-1", "owner-1", discussionRoom, at(10, 9), scheduler.StatusExpired))

		_, err := h.archive.Archive(context.Background(), ownerPrincipal, "r-1")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = h.archive.ListArchived(context.Background(), ownerPrincipal)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("missing reservations are not found", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)

		_, err := h.archive.Archive(context.Background(), adminPrincipal, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestArchiveServiceRestore(t *testing.T) {
	t.Parallel()

	t.Run("regenerates a missing date", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		legacy := stored("r-legacy", "owner-1", discussionRoom, at(10, 9), scheduler.StatusCancelled)
		require.NoError(t, h.store.CreateArchived(context.Background(), ArchivedReservation{ArchiveID: "a-1", ArchivedAt: at(9, 7), Reservation: legacy}))

		restored, err := h.archive.Restore(context.Background(), adminPrincipal, "a-1")
		require.NoError(t, err)
		assert.Equal(t, "2025-03-10", restored.Date)
		assert.Equal(t, int64(1), restored.Version)
	})

	t.Run("refuses a slot that is now held", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		h.store.put(stored("r-live", "owner-2", discussionRoom, at(10, 9), scheduler.StatusApproved))
		held := stored("r-old", "owner-1", discussionRoom, at(10, 9), scheduler.StatusApproved)
		require.NoError(t, h.store.CreateArchived(context.Background(), ArchivedReservation{ArchiveID: "a-1", ArchivedAt: at(9, 7), Reservation: held}))

		_, err := h.archive.Restore(context.Background(), adminPrincipal, "a-1")
		require.ErrorIs(t, err, ErrRoomConflict)

		_, err = h.archive.GetArchived(context.Background(), adminPrincipal, "a-1")
		require.NoError(t, err, "a refused restore leaves the archive untouched")
	})

	t.Run("refuses when the reservation is live", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		h.store.put(stored("r-1", "owner-1", discussionRoom, at(10, 9), scheduler.StatusRejected))
		require.NoError(t, h.store.CreateArchived(context.Background(), ArchivedReservation{
			ArchiveID:   "a-1",
			Reservation: stored("r-1", "owner-1", discussionRoom, at(10, 9), scheduler.StatusRejected),
		}))

		_, err := h.archive.Restore(context.Background(), adminPrincipal, "a-1")
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("unknown archive ids are not found", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)

		_, err := h.archive.Restore(context.Background(), adminPrincipal, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestArchiveServicePurge(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	require.NoError(t, h.store.CreateArchived(context.Background(), ArchivedReservation{
		ArchiveID:   "a-1",
		Reservation: stored("r-1", "owner-1", discussionRoom, at(10, 9), scheduler.StatusExpired),
	}))

	require.ErrorIs(t, h.archive.Purge(context.Background(), ownerPrincipal, "a-1"), ErrUnauthorized)
	require.NoError(t, h.archive.Purge(context.Background(), adminPrincipal, "a-1"))
	require.ErrorIs(t, h.archive.Purge(context.Background(), adminPrincipal, "a-1"), ErrNotFound)
}
