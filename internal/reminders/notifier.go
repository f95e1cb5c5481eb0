package reminders

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// LogNotifier writes fired reminders to the log.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs the reminder.
func (n LogNotifier) Notify(_ context.Context, reminder Reminder) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("reminder fired",
		zap.String("event_id", reminder.EventID),
		zap.Time("fire_at", reminder.FireAt),
		zap.String("message", reminder.Payload.Message()))
	return nil
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends fired reminders to a Telegram chat.
type TelegramNotifier struct {
	sender messageSender
	chatID int64
}

// NewTelegramNotifier connects a bot with token and targets chatID.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("reminders: telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("reminders: telegram bot: %w", err)
	}
	return newTelegramNotifier(api, chatID), nil
}

func newTelegramNotifier(sender messageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

// Notify sends the reminder copy as a plain text message.
func (n *TelegramNotifier) Notify(ctx context.Context, reminder Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("⏰ %s\n%s", reminder.Payload.Message(), reminder.FireAt.Format("Mon Jan 2 03:04 PM"))
	if _, err := n.sender.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("reminders: telegram send: %w", err)
	}
	return nil
}

// MultiNotifier delivers to every notifier and joins their errors.
type MultiNotifier []Notifier

// Notify fans the reminder out.
func (notifiers MultiNotifier) Notify(ctx context.Context, reminder Reminder) error {
	var errs []error
	for _, notifier := range notifiers {
		if err := notifier.Notify(ctx, reminder); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
