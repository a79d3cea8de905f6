package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// MessageSender is the part of the Telegram bot API used for delivery.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatDirectory resolves recipients to their linked Telegram chats.
type ChatDirectory interface {
	GetPerson(ctx context.Context, id string) (persistence.Person, error)
}

// TelegramDispatcher sends events to recipients who linked a Telegram chat.
// Recipients without a chat are skipped.
type TelegramDispatcher struct {
	sender  MessageSender
	persons ChatDirectory
	logger  *slog.Logger
}

// NewTelegramDispatcher connects to the bot API with token.
func NewTelegramDispatcher(token string, persons ChatDirectory, logger *slog.Logger) (*TelegramDispatcher, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramDispatcherWithSender(bot, persons, logger), nil
}

// NewTelegramDispatcherWithSender builds a dispatcher over an existing sender.
func NewTelegramDispatcherWithSender(sender MessageSender, persons ChatDirectory, logger *slog.Logger) *TelegramDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramDispatcher{sender: sender, persons: persons, logger: logger}
}

// Dispatch sends one message per linked recipient. Unknown recipients are
// skipped; lookup and send failures are returned so the event is retried.
func (d *TelegramDispatcher) Dispatch(ctx context.Context, event scheduler.Event) error {
	text := FormatMessage(event)
	var errs []error
	for _, recipient := range event.Recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		person, err := d.persons.GetPerson(ctx, recipient)
		if errors.Is(err, persistence.ErrNotFound) {
			d.logger.DebugContext(ctx, "notification skipped (unknown recipient)", "recipient", recipient, "event_id", event.ID)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("lookup recipient %s: %w", recipient, err))
			continue
		}
		if person.TelegramChatID == nil {
			d.logger.DebugContext(ctx, "notification skipped (no chat_id)", "recipient", recipient, "event_id", event.ID)
			continue
		}
		if _, err := d.sender.Send(tgbotapi.NewMessage(*person.TelegramChatID, text)); err != nil {
			d.logger.ErrorContext(ctx, "failed to send telegram notification",
				"recipient", recipient,
				"chat_id", *person.TelegramChatID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("send to %s: %w", recipient, err))
		}
	}
	return errors.Join(errs...)
}

// FormatMessage renders the human-readable notification text. Times are shown
// in the service zone.
func FormatMessage(event scheduler.Event) string {
	var headline string
	switch event.Kind {
	case scheduler.EventCreated:
		headline = "New reservation request"
	case scheduler.EventExpired:
		headline = "Reservation expired without approval"
	case scheduler.EventStatusChanged:
		headline = "Reservation " + string(event.NewStatus)
	default:
		headline = "Reservation update"
	}

	start := event.Start.In(scheduler.Zone)
	end := event.End.In(scheduler.Zone)

	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Room: %s, %s\n", event.Room, event.Floor)
	fmt.Fprintf(&b, "Date: %s\n", event.Date)
	fmt.Fprintf(&b, "Time: %s-%s\n", start.Format("15:04"), end.Format("15:04"))
	if event.Purpose != "" {
		fmt.Fprintf(&b, "Purpose: %s\n", event.Purpose)
	}
	fmt.Fprintf(&b, "Reference: %s", event.ReservationID)
	return b.String()
}
