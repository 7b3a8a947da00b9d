package social

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram caption limit for photo messages.
const maxCaption = 1024

type channelAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts to a channel the bot administers.
type Telegram struct {
	api       channelAPI
	channelID int64
}

// NewTelegram creates a channel poster on an existing bot API connection.
func NewTelegram(api *tgbotapi.BotAPI, channelID int64) *Telegram {
	return &Telegram{api: api, channelID: channelID}
}

// Name implements Network.
func (t *Telegram) Name() string { return "telegram" }

// Share implements Network. The send itself is not cancellable.
func (t *Telegram) Share(ctx context.Context, p Post) (string, error) {
	if t.channelID == 0 {
		return "", fmt.Errorf("telegram: %w", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := p.Message
	if p.Link != "" {
		text += "\n\n" + p.Link
	}

	var msg tgbotapi.Chattable
	if p.ImageURL != "" {
		photo := tgbotapi.NewPhoto(t.channelID, tgbotapi.FileURL(p.ImageURL))
		photo.Caption = truncate(text, maxCaption)
		msg = photo
	} else {
		m := tgbotapi.NewMessage(t.channelID, text)
		m.DisableWebPagePreview = p.Link == ""
		msg = m
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("send channel post: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}
