package usecase

import (
	"context"
	"fmt"
	"strconv"

	"ArticlesBot/internal/domain"
)

func (b *Bot) onHistory(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionHistory) {
		return "", nil
	}
	b.ShowHistory(ctx, press.Principal.ID, press.Surface, 0)
	return "", nil
}

func (b *Bot) onHistoryPage(ctx context.Context, press domain.ButtonPress, arg string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, press.Token) {
		return "", nil
	}
	offset, err := strconv.Atoi(arg)
	if err != nil || offset < 0 {
		return "", fmt.Errorf("history offset %q: %w", arg, domain.ErrValidation)
	}
	b.ShowHistory(ctx, press.Principal.ID, press.Surface, offset)
	return "", nil
}

// ShowHistory replaces the pressed message with one page of the
// principal's own status changes starting at offset.
func (b *Bot) ShowHistory(ctx context.Context, principalID int64, pressed domain.Surface, offset int) domain.Message {
	entries := b.articles.UserHistory(ctx, principalID, b.historyPageSize, offset)
	total := b.articles.CountUserHistory(ctx, principalID)

	msg := historyMessage(entries, offset, b.historyPageSize, total)
	b.replace(ctx, pressed, msg)
	return msg
}
