package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reelpress/internal/batch"
	"reelpress/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to reelpress!

Turn movie and series IDs into published articles.

Quick start:
1. /batch 603 238 Netflix (queue up to 5 catalogue IDs)
2. /status <token> (follow the batch)
3. /item 603 (look at what was created)

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Batches:
/batch <ids...> [-k kind] <platform> (queue 1-5 catalogue IDs)
/status <token> (batch progress)
/platforms (suggested platform names)

Items:
/item <source_id> [-k kind] (show the article for a catalogue ID)
/trash <item_id> (move an item to the trash)

Discovery:
/discover (resolve entries from the configured feeds)

Kind flag: -k movie | series | auto (default: auto)`)
}

func (b *Bot) handleBatch(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseBatchArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	job, err := b.batches.Submit(ctx, batch.Request{SourceIDs: parsed.SourceIDs, Platform: parsed.Platform, Kind: parsed.Kind})
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrInvalidRequest), errors.Is(err, batch.ErrNotConfigured):
			b.reply(chatID, err.Error())
		default:
			b.log.Error("submit batch", "chat_id", chatID, "error", err)
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
		}
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatSubmitted(job))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdStatus+":"+job.Token),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send batch confirmation", "error", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runBatch(ctx, chatID, job.Token, job.Total)
	}()
}

func (b *Bot) runBatch(ctx context.Context, chatID int64, token string, n int) {
	ctx, cancel := context.WithTimeout(ctx, b.batches.Budget(n))
	defer cancel()

	job, err := b.batches.Process(ctx, token)
	if err != nil {
		b.log.Error("process batch", "batch", token, "error", err)
		b.reply(chatID, fmt.Sprintf("Batch %s stopped: %v", token, err))
		return
	}
	b.reply(chatID, FormatJob(job))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, args string) {
	token := ParseToken(args)
	if token == "" {
		b.reply(chatID, "Usage: /status <token>")
		return
	}

	job, err := b.batches.Status(ctx, token)
	if errors.Is(err, batch.ErrJobNotFound) {
		b.reply(chatID, fmt.Sprintf("Batch %s not found.", token))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatJob(job))
}

func (b *Bot) handleItem(ctx context.Context, chatID int64, args string) {
	id, kind, err := ParseItemArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	item, err := b.store.FindItem(ctx, id, kind)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("No item for source ID %d.", id))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatItem(item))
}

func (b *Bot) handleTrash(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /trash <item_id>")
		return
	}

	item, err := b.store.GetItem(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Item #%d not found.", id))
		return
	}
	if err := b.store.TrashItem(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Item #%d \"%s\" moved to the trash.", id, item.Title))
}

func (b *Bot) handleDiscover(ctx context.Context, chatID int64) {
	if b.discover == nil {
		b.reply(chatID, "No discovery feeds are configured.")
		return
	}

	candidates, err := b.discover.Discover(ctx)
	if err != nil && len(candidates) == 0 {
		b.reply(chatID, fmt.Sprintf("Discovery failed: %v", err))
		return
	}
	if err != nil {
		b.log.Warn("discovery partially failed", "error", err)
	}
	b.reply(chatID, FormatCandidates(candidates))
}
