package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/metrics"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/scheduler"
	"github.com/example/room-reservations/internal/testfixtures"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func sampleEvent(id string) scheduler.Event {
	start := testfixtures.SlotAt(0, 10)
	return scheduler.Event{
		ID:            id,
		Kind:          scheduler.EventStatusChanged,
		ReservationID: "res-1",
		OwnerID:       "2021-00001",
		Floor:         "Ground Floor",
		Room:          "Discussion Room",
		Date:          scheduler.DateOf(start),
		Start:         start,
		End:           scheduler.SlotEnd(start),
		Purpose:       "Thesis meeting",
		NewStatus:     scheduler.StatusApproved,
		Recipients:    []string{"2021-00001", "2021-00002"},
		OccurredAt:    testfixtures.ReferenceTime(),
	}
}

func TestOutboxEnqueueStoresEncodedEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.Open()
	event := sampleEvent("evt-1")

	require.NoError(t, NewOutbox(store).Enqueue(ctx, event))

	pending, err := store.ListPendingEvents(ctx, event.OccurredAt, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-1", pending[0].ID)
	assert.Equal(t, event.Fingerprint(), pending[0].Fingerprint)
	assert.Equal(t, string(scheduler.EventStatusChanged), pending[0].Kind)

	decoded, err := scheduler.DecodeEvent(pending[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, event.Recipients, decoded.Recipients)
	assert.Equal(t, scheduler.StatusApproved, decoded.NewStatus)

	assert.Error(t, NewOutbox(store).Enqueue(ctx, scheduler.Event{Kind: scheduler.EventCreated}))
}

func TestTelegramDispatcherSkipsUnlinkedRecipients(t *testing.T) {
	ctx := context.Background()
	store := memory.Open()
	linked := testfixtures.NewPersonFixture(testfixtures.WithPersonID("2021-00001"), testfixtures.WithPersonTelegramChat(555))
	unlinked := testfixtures.NewPersonFixture(testfixtures.WithPersonID("2021-00002"))
	require.NoError(t, store.UpsertPerson(ctx, linked.Persistence()))
	require.NoError(t, store.UpsertPerson(ctx, unlinked.Persistence()))

	sender := &mockSender{}
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 555 && strings.Contains(msg.Text, "Reservation approved")
	})).Return(nil).Once()

	event := sampleEvent("evt-2")
	event.Recipients = append(event.Recipients, "2099-00000")

	dispatcher := NewTelegramDispatcherWithSender(sender, store, nil)
	require.NoError(t, dispatcher.Dispatch(ctx, event))
	sender.AssertExpectations(t)
}

func TestTelegramDispatcherReportsSendFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.Open()
	person := testfixtures.NewPersonFixture(testfixtures.WithPersonID("2021-00001"), testfixtures.WithPersonTelegramChat(777))
	require.NoError(t, store.UpsertPerson(ctx, person.Persistence()))

	sender := &mockSender{}
	sender.On("Send", mock.Anything).Return(errors.New("Forbidden: bot was blocked by the user"))

	event := sampleEvent("evt-3")
	event.Recipients = []string{person.ID}

	err := NewTelegramDispatcherWithSender(sender, store, nil).Dispatch(ctx, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestFormatMessageUsesServiceZone(t *testing.T) {
	text := FormatMessage(sampleEvent("evt-4"))

	assert.True(t, strings.HasPrefix(text, "Reservation approved"))
	assert.Contains(t, text, "Room: Discussion Room, Ground Floor")
	assert.Contains(t, text, "Date: 2025-03-10")
	assert.Contains(t, text, "Time: 10:00-11:00")
	assert.Contains(t, text, "Purpose: Thesis meeting")

	created := sampleEvent("evt-5")
	created.Kind = scheduler.EventCreated
	created.NewStatus = ""
	assert.True(t, strings.HasPrefix(FormatMessage(created), "New reservation request"))
}

func TestFanoutJoinsErrors(t *testing.T) {
	var calls []string
	ok := DispatcherFunc(func(context.Context, scheduler.Event) error {
		calls = append(calls, "ok")
		return nil
	})
	failing := DispatcherFunc(func(context.Context, scheduler.Event) error {
		calls = append(calls, "failing")
		return errors.New("sink down")
	})

	err := Fanout{failing, nil, ok}.Dispatch(context.Background(), sampleEvent("evt-6"))

	require.Error(t, err)
	assert.Equal(t, []string{"failing", "ok"}, calls)
}

func TestLogDispatcherWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogDispatcher(logger).Dispatch(context.Background(), sampleEvent("evt-7")))

	assert.Contains(t, buf.String(), `"event_id":"evt-7"`)
	assert.Contains(t, buf.String(), `"fingerprint":"`+sampleEvent("evt-7").Fingerprint()+`"`)
	assert.Contains(t, buf.String(), `"new_status":"approved"`)
}

func TestRelayDeliversAndRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	store := memory.Open()
	clock := testfixtures.NewClock(time.Time{})
	outbox := NewOutbox(store)

	good := sampleEvent("evt-good")
	bad := sampleEvent("evt-bad")
	bad.ReservationID = "res-bad"
	require.NoError(t, outbox.Enqueue(ctx, good))
	require.NoError(t, outbox.Enqueue(ctx, bad))

	dispatcher := DispatcherFunc(func(_ context.Context, e scheduler.Event) error {
		if e.ReservationID == "res-bad" {
			return errors.New("sink down")
		}
		return nil
	})
	m := metrics.New("test")
	relay := NewRelay(store, dispatcher, RelayConfig{
		BaseBackoff: time.Minute,
		MaxBackoff:  3 * time.Minute,
		Now:         clock.NowFunc(),
	}, m, nil)

	delivered, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	pending, err := store.ListPendingEvents(ctx, clock.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-bad", pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "sink down", pending[0].LastError)
	assert.True(t, pending[0].NextAttemptAt.Equal(clock.Now().Add(time.Minute)))

	delivered, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered, "failed event is not due yet")

	clock.Advance(time.Minute)
	_, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	pending, err = store.ListPendingEvents(ctx, clock.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.True(t, pending[0].NextAttemptAt.Equal(clock.Now().Add(2*time.Minute)))
}

func TestOutboxDropsRepeatedNotification(t *testing.T) {
	ctx := context.Background()
	store := memory.Open()
	outbox := NewOutbox(store)

	first := sampleEvent("evt-first")
	again := sampleEvent("evt-again")
	again.OccurredAt = first.OccurredAt.Add(time.Second)
	require.Equal(t, first.Fingerprint(), again.Fingerprint())

	require.NoError(t, outbox.Enqueue(ctx, first))
	require.NoError(t, outbox.Enqueue(ctx, again))

	var dispatched []string
	relay := NewRelay(store, DispatcherFunc(func(_ context.Context, e scheduler.Event) error {
		dispatched = append(dispatched, e.ID)
		return nil
	}), RelayConfig{Now: testfixtures.NewClock(time.Time{}).NowFunc()}, nil, nil)

	delivered, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"evt-first"}, dispatched)

	other := sampleEvent("evt-other")
	other.NewStatus = scheduler.StatusCancelled
	require.NoError(t, outbox.Enqueue(ctx, other))
	delivered, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestRelayBackoffIsCapped(t *testing.T) {
	relay := NewRelay(memory.Open(), NewLogDispatcher(nil), RelayConfig{
		BaseBackoff: time.Minute,
		MaxBackoff:  5 * time.Minute,
	}, nil, nil)

	assert.Equal(t, time.Minute, relay.backoff(1))
	assert.Equal(t, 2*time.Minute, relay.backoff(2))
	assert.Equal(t, 4*time.Minute, relay.backoff(3))
	assert.Equal(t, 5*time.Minute, relay.backoff(4))
	assert.Equal(t, 5*time.Minute, relay.backoff(20))
}

func TestRelayDiscardsUndecodablePayload(t *testing.T) {
	ctx := context.Background()
	store := memory.Open()
	stored, err := store.EnqueueEvent(ctx, persistence.OutboxEvent{
		ID:          "evt-junk",
		Fingerprint: "junk",
		Kind:        "reservation.created",
		Payload:     []byte("not json"),
		CreatedAt:   testfixtures.ReferenceTime(),
	})
	require.NoError(t, err)
	require.True(t, stored)

	relay := NewRelay(store, DispatcherFunc(func(context.Context, scheduler.Event) error {
		t.Fatal("dispatcher must not be called")
		return nil
	}), RelayConfig{Now: testfixtures.NewClock(time.Time{}).NowFunc()}, nil, nil)

	delivered, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)

	pending, err := store.ListPendingEvents(ctx, testfixtures.ReferenceTime(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.Open()
	relay := NewRelay(store, NewLogDispatcher(nil), RelayConfig{}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, 10*time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
