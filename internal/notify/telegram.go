// Package notify шлет операторам алерты о сломавшихся синках.
package notify

import (
	"encoding/json"
	"fmt"

	"suppliersync/internal/config"
	"suppliersync/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the piece of the bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes job failures and auth expiry to operator chats.
// It only listens to the bad news; success spam helps nobody.
type TelegramNotifier struct {
	bot     Sender
	chatIDs []int64
	log     zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return newNotifier(botAPI, cfg.ChatIDs, logger), nil
}

func newNotifier(bot Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "notify").Logger()
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, log: log}
}

// Subscribe wires the notifier into the event bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventJobFailed, n.onJobFailed)
	bus.Subscribe(events.EventAuthExpired, n.onAuthExpired)
}

func (n *TelegramNotifier) onJobFailed(e *events.Event) error {
	var p events.JobEventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return err
	}
	text := fmt.Sprintf("❌ Sync %s/%s failed\njob %s\nprogress %d\n%s",
		p.SupplierCode, p.JobType, p.JobID, p.Progress, p.Error)
	n.broadcast(text)
	return nil
}

func (n *TelegramNotifier) onAuthExpired(e *events.Event) error {
	var p events.JobEventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return err
	}
	text := fmt.Sprintf("🔑 Token expired for %s, re-issue credentials (job %s stopped)",
		p.SupplierCode, p.JobID)
	n.broadcast(text)
	return nil
}

func (n *TelegramNotifier) broadcast(text string) {
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.log.Error().Err(err).Int64("chat", chatID).Msg("failed to send alert")
		}
	}
}
