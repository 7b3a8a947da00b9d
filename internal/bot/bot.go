// Package bot is the Telegram admin interface: submit batches, follow their progress,
// look up items and browse discovery candidates.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reelpress/internal/batch"
	"reelpress/internal/config"
	"reelpress/internal/model"
	"reelpress/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Batches is the part of the batch coordinator the bot drives.
type Batches interface {
	Submit(ctx context.Context, req batch.Request) (*model.BatchJob, error)
	Process(ctx context.Context, token string) (*model.BatchJob, error)
	Status(ctx context.Context, token string) (*model.BatchJob, error)
	Budget(n int) time.Duration
}

// Discoverer lists candidates from the configured feeds.
type Discoverer interface {
	Discover(ctx context.Context) ([]model.Candidate, error)
}

// Bot is the Telegram admin bot.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	cfg      *config.Config
	batches  Batches
	discover Discoverer
	log      *slog.Logger
	wg       sync.WaitGroup
}

// New creates a Bot on an existing API connection. discover may be nil.
func New(api *tgbotapi.BotAPI, store storage.Storage, cfg *config.Config, batches Batches, discover Discoverer, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		batches:  batches,
		discover: discover,
		log:      log.With("component", "bot"),
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled and every
// batch started from chat has returned.
func (b *Bot) Run(ctx context.Context) {
	defer b.wg.Wait()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					b.handleCallback(ctx, update.CallbackQuery)
				}
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "platforms":
		b.reply(chatID, FormatPlatforms(model.KnownPlatforms))
	case "batch":
		b.handleBatch(ctx, chatID, args)
	case cmdStatus:
		b.handleStatus(ctx, chatID, args)
	case "item":
		b.handleItem(ctx, chatID, args)
	case "trash":
		b.handleTrash(ctx, chatID, args)
	case "discover":
		b.handleDiscover(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
