package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ArticlesBot/internal/conversation"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// BroadcastReport lists which admins received a notice.
type BroadcastReport struct {
	Delivered []int64
	Failed    []int64
}

// Transition is the outcome of a successful status change.
type Transition struct {
	Change   domain.StatusChange
	Notice   string
	Delivery Delivery
	Report   BroadcastReport
}

func (b *Bot) onSearch(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionSearch) {
		return "", nil
	}
	b.conversations.Begin(ctx, press.Principal.ID, conversation.AwaitingArticleNumber)
	b.send(ctx, press.Surface.ChatID, searchPrompt())
	return "", nil
}

// onBackToMenu leaves the search prompt and reopens the listing. It is
// inert unless the search prompt is open.
func (b *Bot) onBackToMenu(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if b.conversations.Current(ctx, press.Principal.ID) != conversation.AwaitingArticleNumber {
		return "", nil
	}
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionBackToMenu) {
		return "", nil
	}
	b.conversations.Reset(ctx, press.Principal.ID)
	b.drop(ctx, press.Surface)
	_, err := b.StartListing(ctx, press.Principal.ID, press.Surface.ChatID)
	return "", err
}

// completeSearch answers the search prompt. The prompt is closed even
// when the input is rejected.
func (b *Bot) completeSearch(ctx context.Context, msg domain.TextMessage) {
	if !b.requireEditor(ctx, msg.Principal, msg.ChatID, "search") {
		return
	}
	id, err := parseID(msg.Body)
	if err != nil {
		b.send(ctx, msg.ChatID, domain.Message{Text: textInvalidArticle})
		return
	}
	article, ok := b.articles.GetArticle(ctx, id)
	if !ok {
		b.send(ctx, msg.ChatID, domain.Message{Text: textArticleNotFound})
		return
	}
	b.send(ctx, msg.ChatID, domain.Message{Text: articleFound(article)})
}

// openReference shows the details card for a /article<N> reference.
func (b *Bot) openReference(ctx context.Context, msg domain.TextMessage) {
	if !b.requireEditor(ctx, msg.Principal, msg.ChatID, ArticleRefPrefix) {
		return
	}
	id, ok := parseReference(msg.Body)
	if !ok {
		b.send(ctx, msg.ChatID, domain.Message{Text: textBadReference})
		return
	}
	b.ShowArticle(ctx, msg.ChatID, id)
}

// ShowArticle sends the details card of an article with its status buttons.
func (b *Bot) ShowArticle(ctx context.Context, chatID, id int64) bool {
	article, ok := b.articles.GetArticle(ctx, id)
	if !ok {
		b.send(ctx, chatID, domain.Message{Text: textArticleNotFound})
		return false
	}
	links, ok := b.articles.GetLinks(ctx, id)
	if !ok {
		b.send(ctx, chatID, domain.Message{Text: textArticleNotFound})
		return false
	}
	_, sent := b.send(ctx, chatID, articleCard(article, links))
	return sent
}

func parseReference(body string) (int64, bool) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), ArticleRefPrefix))
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (b *Bot) onStatus(status domain.ArticleStatus) func(context.Context, domain.ButtonPress, string) (string, error) {
	return func(ctx context.Context, press domain.ButtonPress, arg string) (string, error) {
		chatID := press.Surface.ChatID
		if !b.requireEditor(ctx, press.Principal, chatID, press.Token) {
			return "", nil
		}
		id, err := parseID(arg)
		if err != nil {
			return "", fmt.Errorf("status action %q: %w", press.Token, err)
		}

		t, err := b.ChangeStatus(ctx, press.Principal, press.Surface, id, status)
		switch {
		case err == nil:
			return t.Notice, nil
		case errors.Is(err, domain.ErrNotFound):
			b.send(ctx, chatID, domain.Message{Text: statusNotAssigned(id)})
			return "", nil
		default:
			b.send(ctx, chatID, domain.Message{Text: textGenericFailure})
			return "", err
		}
	}
}

// ChangeStatus records the new status of an article assigned to actor,
// updates the pressed card, confirms to the actor and notifies every admin.
// Any status may follow any other.
func (b *Bot) ChangeStatus(ctx context.Context, actor domain.Principal, card domain.Surface, id int64, status domain.ArticleStatus) (Transition, error) {
	if err := b.articles.UpdateStatus(ctx, id, actor.ID, status); err != nil {
		return Transition{}, fmt.Errorf("update article %d: %w", id, err)
	}

	t := Transition{
		Change: domain.StatusChange{
			ArticleID: id,
			Status:    status,
			Actor:     actor,
			ChangedAt: time.Now().UTC(),
		},
		Notice: statusChangedNotice(id, status),
	}
	b.logger.Info("status changed", "article_id", id, "status", status, "user_id", actor.ID)

	t.Delivery = b.updateCard(ctx, card, domain.Message{
		Text:     statusChangedText(id, status),
		Keyboard: statusKeyboard(id),
	})
	b.send(ctx, card.ChatID, domain.Message{Text: statusConfirmation(id, status)})

	b.publish(ctx, ports.TopicStatusChanged, t.Change)
	t.Report = b.NotifyAdmins(ctx, adminStatusNotice(id, status, actor))
	return t, nil
}

// updateCard edits the card in place and sends the card as a new message
// when the edit fails for any reason, including an unchanged card.
func (b *Bot) updateCard(ctx context.Context, card domain.Surface, msg domain.Message) Delivery {
	err := b.messenger.EditMessageText(ctx, card, msg)
	if err == nil {
		return DeliveryEdited
	}
	b.logger.Debug("edit card failed, sending a new message", "chat_id", card.ChatID, "message_id", card.MessageID, "error", err)
	if _, ok := b.send(ctx, card.ChatID, msg); !ok {
		return DeliverySkipped
	}
	return DeliverySent
}

// NotifyAdmins sends text to every admin. A failed delivery is logged and
// does not stop the others.
func (b *Bot) NotifyAdmins(ctx context.Context, text string) BroadcastReport {
	admins := b.directory.Admins()
	errs := make([]error, len(admins))

	var g errgroup.Group
	g.SetLimit(b.broadcastConcurrency)
	for i, id := range admins {
		g.Go(func() error {
			_, errs[i] = b.messenger.SendMessage(ctx, id, domain.Message{Text: text})
			return nil
		})
	}
	_ = g.Wait()

	var report BroadcastReport
	for i, id := range admins {
		if errs[i] != nil {
			b.logger.Error("notify admin", "admin_id", id, "error", errs[i])
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Delivered = append(report.Delivered, id)
	}
	return report
}
