package usecase

import (
	"context"
	"errors"

	"ArticlesBot/internal/conversation"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

func (b *Bot) onAdminPanel(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireAdmin(ctx, press.Principal, press.Surface.ChatID, ActionAdminPanel) {
		return "", nil
	}
	b.replace(ctx, press.Surface, adminPanel())
	return "", nil
}

func (b *Bot) onAddEditor(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireAdmin(ctx, press.Principal, press.Surface.ChatID, ActionAddEditor) {
		return "", nil
	}
	b.conversations.Begin(ctx, press.Principal.ID, conversation.AwaitingNewEditorID)
	b.replace(ctx, press.Surface, domain.Message{Text: textAddPrompt})
	return "", nil
}

func (b *Bot) onRemoveEditor(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireAdmin(ctx, press.Principal, press.Surface.ChatID, ActionRemoveEditor) {
		return "", nil
	}
	b.conversations.Begin(ctx, press.Principal.ID, conversation.AwaitingEditorRemovalID)
	b.replace(ctx, press.Surface, domain.Message{Text: textRemovePrompt})
	return "", nil
}

func (b *Bot) onListEditors(ctx context.Context, press domain.ButtonPress, _ string) (string, error) {
	if !b.requireAdmin(ctx, press.Principal, press.Surface.ChatID, ActionListEditors) {
		return "", nil
	}
	editors, err := b.directory.ListEditors()
	if err != nil {
		b.send(ctx, press.Surface.ChatID, domain.Message{Text: textGenericFailure})
		return "", err
	}
	b.replace(ctx, press.Surface, editorsMessage(editors))
	return "", nil
}

func (b *Bot) completeAddEditor(ctx context.Context, msg domain.TextMessage) {
	if !b.requireAdmin(ctx, msg.Principal, msg.ChatID, ActionAddEditor) {
		return
	}
	id, err := parseID(msg.Body)
	if err != nil {
		b.send(ctx, msg.ChatID, domain.Message{Text: textInvalidUserID})
		return
	}
	b.send(ctx, msg.ChatID, domain.Message{Text: b.AddEditor(ctx, msg.Principal, id)})
}

func (b *Bot) completeRemoveEditor(ctx context.Context, msg domain.TextMessage) {
	if !b.requireAdmin(ctx, msg.Principal, msg.ChatID, ActionRemoveEditor) {
		return
	}
	id, err := parseID(msg.Body)
	if err != nil {
		b.send(ctx, msg.ChatID, domain.Message{Text: textInvalidUserID})
		return
	}
	b.send(ctx, msg.ChatID, domain.Message{Text: b.RemoveEditor(ctx, msg.Principal, id)})
}

// AddEditor registers id as an editor on behalf of actor and returns the
// reply shown to the admin.
func (b *Bot) AddEditor(ctx context.Context, actor domain.Principal, id int64) string {
	err := b.directory.AddEditor(domain.Editor{ID: id})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyExists):
		return textAlreadyEditor
	default:
		b.logger.Error("add editor", "editor_id", id, "admin_id", actor.ID, "error", err)
		return textGenericFailure
	}

	b.logger.Info("editor added", "editor_id", id, "admin_id", actor.ID)
	b.publish(ctx, ports.TopicEditorAdded, domain.EditorChange{EditorID: id, Actor: actor})
	return editorAdded(id)
}

// RemoveEditor revokes editor membership of id on behalf of actor and
// returns the reply shown to the admin.
func (b *Bot) RemoveEditor(ctx context.Context, actor domain.Principal, id int64) string {
	err := b.directory.RemoveEditor(id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return textNotEditor
	default:
		b.logger.Error("remove editor", "editor_id", id, "admin_id", actor.ID, "error", err)
		return textGenericFailure
	}

	b.logger.Info("editor removed", "editor_id", id, "admin_id", actor.ID)
	b.publish(ctx, ports.TopicEditorRemoved, domain.EditorChange{EditorID: id, Actor: actor})
	return editorRemoved(id)
}
