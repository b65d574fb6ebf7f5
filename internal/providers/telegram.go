package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/utils"
)

// Telegram delivers notifications via the bot API. One limiter guards the
// whole process against the bot-wide message rate.
type Telegram struct {
	cfg     config.Config
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewTelegram(cfg config.Config, logger *logging.Logger) *Telegram {
	return &Telegram{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Telegram.RateLimit)), cfg.Telegram.RateLimit),
	}
}

// Send posts the notification to the contact's Telegram chat.
func (t *Telegram) Send(ctx context.Context, notif models.Notification, contact models.Contact) error {
	if contact.TelegramChatID == 0 {
		return fmt.Errorf("no Telegram chat registered")
	}
	if t.cfg.Telegram.BotToken == "" {
		return fmt.Errorf("missing Telegram configuration: BotToken is empty")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", notif.Title, notif.Body)

	return utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}

		params := &bot.SendMessageParams{
			ChatID:    contact.TelegramChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", contact.TelegramChatID, err)
		}
		return nil
	})
}
