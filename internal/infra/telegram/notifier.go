// internal/infra/telegram/notifier.go
package telegram

import (
	"time"

	"gopkg.in/telebot.v3"
)

// AdminNotifier pings a single admin chat. It is an optional secondary
// channel for relogin alerts; email remains the primary transport.
type AdminNotifier struct {
	bot    *telebot.Bot
	chatID int64
}

// NewAdminNotifier creates the bot client, or returns nil when the channel
// is not configured (empty token or zero chat ID).
func NewAdminNotifier(token string, chatID int64) (*AdminNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &AdminNotifier{bot: bot, chatID: chatID}, nil
}

// SendToAdmin sends a plain-text message to the configured admin chat.
func (n *AdminNotifier) SendToAdmin(text string) error {
	recipient := &telebot.User{ID: n.chatID}
	_, err := n.bot.Send(recipient, text, &telebot.SendOptions{})
	return err
}
