package usecase

import (
	"context"
	"errors"
	"fmt"

	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// Delivery reports how a rendered message reached the user.
type Delivery int

const (
	// DeliverySkipped means nothing was rendered.
	DeliverySkipped Delivery = iota
	// DeliveryEdited means the existing surface was edited in place.
	DeliveryEdited
	// DeliveryUnchanged means the existing surface already showed the content.
	DeliveryUnchanged
	// DeliverySent means a new message was sent.
	DeliverySent
)

func (d Delivery) String() string {
	switch d {
	case DeliveryEdited:
		return "edited"
	case DeliveryUnchanged:
		return "unchanged"
	case DeliverySent:
		return "sent"
	default:
		return "skipped"
	}
}

// StartListing resets the principal's session and shows page 1 as a new message.
func (b *Bot) StartListing(ctx context.Context, principalID, chatID int64) (Delivery, error) {
	if err := b.sessions.Set(ctx, principalID, domain.NewSession()); err != nil {
		b.logger.Warn("reset session", "user_id", principalID, "error", err)
	}
	return b.Render(ctx, principalID, chatID)
}

// Render reloads the listing and shows the session's current page,
// editing the recorded surface when there is one.
func (b *Bot) Render(ctx context.Context, principalID, chatID int64) (Delivery, error) {
	s := b.sessions.Get(ctx, principalID)
	s.Articles = b.articles.ListArticles(ctx, s.Filter, s.Order)
	s.NumPages = numPages(len(s.Articles), b.pageSize)
	s.Page = clampPage(s.Page, s.NumPages)

	msg := listingMessage(pageWindow(s.Articles, s.Page, b.pageSize), s.Page, s.NumPages)
	delivery, surface, err := b.reconcile(ctx, s.Surface, chatID, msg)
	s.Surface = surface

	if setErr := b.sessions.Set(ctx, principalID, s); setErr != nil {
		b.logger.Warn("save session", "user_id", principalID, "error", setErr)
	}
	return delivery, err
}

// ChangePage moves the listing by delta pages. Targets outside
// [1, NumPages] leave everything untouched.
func (b *Bot) ChangePage(ctx context.Context, principalID int64, pressed domain.Surface, delta int) (Delivery, error) {
	s := b.sessions.Get(ctx, principalID)
	if s.Surface == nil {
		// The session expired: adopt the pressed listing and redraw it.
		s.Surface = &pressed
		if err := b.sessions.Set(ctx, principalID, s); err != nil {
			b.logger.Warn("save session", "user_id", principalID, "error", err)
		}
		return b.Render(ctx, principalID, pressed.ChatID)
	}

	target := s.Page + delta
	if target < 1 || target > s.NumPages {
		return DeliverySkipped, nil
	}
	s.Page = target
	if err := b.sessions.Set(ctx, principalID, s); err != nil {
		b.logger.Warn("save session", "user_id", principalID, "error", err)
	}
	return b.Render(ctx, principalID, s.Surface.ChatID)
}

// SetSort changes the order and returns to page 1.
func (b *Bot) SetSort(ctx context.Context, principalID, chatID int64, order domain.SortOrder) (Delivery, error) {
	s := b.sessions.Get(ctx, principalID)
	s.Order = order
	s.Page = 1
	if err := b.sessions.Set(ctx, principalID, s); err != nil {
		b.logger.Warn("save session", "user_id", principalID, "error", err)
	}
	return b.Render(ctx, principalID, chatID)
}

// SetFilter limits the listing to one status, or clears the limit when
// status is empty, and returns to page 1.
func (b *Bot) SetFilter(ctx context.Context, principalID, chatID int64, status domain.ArticleStatus) (Delivery, error) {
	s := b.sessions.Get(ctx, principalID)
	s.Filter = status
	s.Page = 1
	if err := b.sessions.Set(ctx, principalID, s); err != nil {
		b.logger.Warn("save session", "user_id", principalID, "error", err)
	}
	return b.Render(ctx, principalID, chatID)
}

// reconcile edits surface in place, treating an unchanged surface as done
// and a vanished one as a reason to send a new message.
func (b *Bot) reconcile(ctx context.Context, surface *domain.Surface, chatID int64, msg domain.Message) (Delivery, *domain.Surface, error) {
	if surface != nil {
		err := b.messenger.EditMessageText(ctx, *surface, msg)
		switch {
		case err == nil:
			return DeliveryEdited, surface, nil
		case errors.Is(err, ports.ErrMessageNotModified):
			return DeliveryUnchanged, surface, nil
		case !errors.Is(err, ports.ErrMessageNotFound):
			return DeliverySkipped, surface, fmt.Errorf("edit listing: %w", err)
		}
		b.logger.Debug("listing surface is gone, sending a new one", "chat_id", surface.ChatID, "message_id", surface.MessageID)
		chatID = surface.ChatID
	}

	sent, err := b.messenger.SendMessage(ctx, chatID, msg)
	if err != nil {
		return DeliverySkipped, nil, fmt.Errorf("send listing: %w", err)
	}
	return DeliverySent, &sent, nil
}

func numPages(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func clampPage(page, numPages int) int {
	if page > numPages {
		page = numPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

func pageWindow(articles []domain.Article, page, pageSize int) []domain.Article {
	start := (page - 1) * pageSize
	if start >= len(articles) {
		return nil
	}
	end := min(start+pageSize, len(articles))
	return articles[start:end]
}

func (b *Bot) onList(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionList) {
		return "", nil
	}
	_, err := b.StartListing(ctx, press.Principal.ID, press.Surface.ChatID)
	return "", err
}

func (b *Bot) onPage(delta int) func(context.Context, domain.ButtonPress, string) (string, error) {
	return func(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
		if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, press.Token) {
			return "", nil
		}
		_, err := b.ChangePage(ctx, press.Principal.ID, press.Surface, delta)
		return "", err
	}
}

func (b *Bot) onSortMenu(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionSortMenu) {
		return "", nil
	}
	b.send(ctx, press.Surface.ChatID, sortMenu())
	return "", nil
}

func (b *Bot) onSort(order domain.SortOrder) func(context.Context, domain.ButtonPress, string) (string, error) {
	return func(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
		if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, press.Token) {
			return "", nil
		}
		b.closeMenu(ctx, press.Surface)
		_, err := b.SetSort(ctx, press.Principal.ID, press.Surface.ChatID, order)
		return "", err
	}
}

func (b *Bot) onFilterMenu(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionFilterMenu) {
		return "", nil
	}
	b.send(ctx, press.Surface.ChatID, filterMenu())
	return "", nil
}

func (b *Bot) onFilterAll(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, ActionFilterAll) {
		return "", nil
	}
	b.closeMenu(ctx, press.Surface)
	_, err := b.SetFilter(ctx, press.Principal.ID, press.Surface.ChatID, "")
	return "", err
}

func (b *Bot) onFilter(ctx context.Context, press domain.ButtonPress, arg string) (string, error) {
	if !b.requireEditor(ctx, press.Principal, press.Surface.ChatID, press.Token) {
		return "", nil
	}
	status, err := domain.ParseStatus(arg)
	if err != nil {
		return "", err
	}
	b.closeMenu(ctx, press.Surface)
	_, err = b.SetFilter(ctx, press.Principal.ID, press.Surface.ChatID, status)
	return "", err
}

// closeMenu strips the buttons of a submenu once a choice was made.
func (b *Bot) closeMenu(ctx context.Context, surface domain.Surface) {
	err := b.messenger.EditMessageButtons(ctx, surface, nil)
	if err != nil && !errors.Is(err, ports.ErrMessageNotModified) && !errors.Is(err, ports.ErrMessageNotFound) {
		b.logger.Debug("close menu", "chat_id", surface.ChatID, "message_id", surface.MessageID, "error", err)
	}
}
