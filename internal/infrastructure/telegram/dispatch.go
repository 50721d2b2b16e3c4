package telegram

import (
	"context"
	"strings"

	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// Dispatch translates an update into a core event and hands it to handler.
// Updates the bot does not act on are dropped.
func Dispatch(ctx context.Context, handler ports.EventHandler, update Update) bool {
	switch {
	case update.CallbackQuery != nil:
		press, ok := toPress(*update.CallbackQuery)
		if !ok {
			return false
		}
		handler.HandlePress(ctx, press)
		return true
	case update.Message != nil && update.Message.From != nil && update.Message.Text != "":
		msg := update.Message
		p := toPrincipal(*msg.From)
		if name, ok := commandName(msg.Text); ok && name == "start" {
			handler.HandleCommand(ctx, domain.Command{Name: name, ChatID: msg.Chat.ID, Principal: p})
			return true
		}
		handler.HandleText(ctx, domain.TextMessage{Body: msg.Text, ChatID: msg.Chat.ID, Principal: p})
		return true
	default:
		return false
	}
}

func toPress(q CallbackQuery) (domain.ButtonPress, bool) {
	if q.Message == nil {
		return domain.ButtonPress{}, false
	}
	return domain.ButtonPress{
		Token:      q.Data,
		CallbackID: q.ID,
		Principal:  toPrincipal(q.From),
		Surface:    domain.Surface{ChatID: q.Message.Chat.ID, MessageID: q.Message.MessageID},
	}, true
}

func toPrincipal(u User) domain.Principal {
	p := domain.Principal{
		ID:     u.ID,
		Name:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Handle: u.Username,
	}
	if p.Name == "" {
		p.Name = domain.PlaceholderName
	}
	if p.Handle == "" {
		p.Handle = domain.PlaceholderHandle
	}
	return p
}

// commandName extracts "start" from "/start", "/start@SomeBot" or "/start payload".
func commandName(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word, _, _ := strings.Cut(text[1:], " ")
	word, _, _ = strings.Cut(word, "@")
	if word == "" {
		return "", false
	}
	return word, true
}
