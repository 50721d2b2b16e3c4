package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"ArticlesBot/internal/conversation"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
	"ArticlesBot/internal/router"
)

// BotDeps wires the driven adapters into the bot.
type BotDeps struct {
	Directory     ports.EditorDirectory
	Articles      ports.ArticleRepository
	Sessions      ports.SessionStore
	Conversations *conversation.Machine
	Messenger     ports.Messenger
	Publisher     ports.EventPublisher
	Logger        *slog.Logger

	PageSize             int
	HistoryPageSize      int
	BroadcastConcurrency int
}

// Bot turns inbound chat events into article workflow operations.
type Bot struct {
	directory     ports.EditorDirectory
	articles      ports.ArticleRepository
	sessions      ports.SessionStore
	conversations *conversation.Machine
	messenger     ports.Messenger
	publisher     ports.EventPublisher
	logger        *slog.Logger

	pageSize             int
	historyPageSize      int
	broadcastConcurrency int

	routes *router.Registry
	locks  *keyedLocker
}

var _ ports.EventHandler = (*Bot)(nil)

// NewBot constructs the bot and registers every button action.
func NewBot(deps BotDeps) *Bot {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		directory:            deps.Directory,
		articles:             deps.Articles,
		sessions:             deps.Sessions,
		conversations:        deps.Conversations,
		messenger:            deps.Messenger,
		publisher:            deps.Publisher,
		logger:               logger.With("component", "bot"),
		pageSize:             positive(deps.PageSize, 10),
		historyPageSize:      positive(deps.HistoryPageSize, 5),
		broadcastConcurrency: positive(deps.BroadcastConcurrency, 4),
		routes:               router.NewRegistry(),
		locks:                newKeyedLocker(),
	}
	b.registerRoutes()
	return b
}

func (b *Bot) registerRoutes() {
	b.routes.Register(ActionList, b.onList)
	b.routes.Register(ActionPrev, b.onPage(-1))
	b.routes.Register(ActionNext, b.onPage(1))
	b.routes.Register(ActionNoop, b.onNoop)
	b.routes.Register(ActionSortMenu, b.onSortMenu)
	b.routes.Register(ActionSortAsc, b.onSort(domain.SortAscending))
	b.routes.Register(ActionSortDesc, b.onSort(domain.SortDescending))
	b.routes.Register(ActionFilterMenu, b.onFilterMenu)
	b.routes.Register(ActionFilterAll, b.onFilterAll)
	b.routes.RegisterPrefix(ActionFilterPrefix, b.onFilter)
	b.routes.Register(ActionSearch, b.onSearch)
	b.routes.Register(ActionBackToMenu, b.onBackToMenu)
	b.routes.Register(ActionHistory, b.onHistory)
	b.routes.RegisterPrefix(ActionHistoryPagePrefix, b.onHistoryPage)
	b.routes.RegisterPrefix(ActionStartPrefix, b.onStatus(domain.StatusStarted))
	b.routes.RegisterPrefix(ActionDonePrefix, b.onStatus(domain.StatusDone))
	b.routes.RegisterPrefix(ActionReviewPrefix, b.onStatus(domain.StatusReview))
	b.routes.Register(ActionAdminPanel, b.onAdminPanel)
	b.routes.Register(ActionAddEditor, b.onAddEditor)
	b.routes.Register(ActionRemoveEditor, b.onRemoveEditor)
	b.routes.Register(ActionListEditors, b.onListEditors)
}

// HandleCommand serves slash commands.
func (b *Bot) HandleCommand(ctx context.Context, cmd domain.Command) {
	unlock := b.locks.Lock(cmd.Principal.ID)
	defer unlock()

	switch cmd.Name {
	case CommandStart:
		role := b.role(cmd.Principal.ID)
		if !role.CanEdit() {
			b.deny(ctx, cmd.Principal, cmd.ChatID, "/"+cmd.Name)
			return
		}
		b.conversations.Reset(ctx, cmd.Principal.ID)
		b.send(ctx, cmd.ChatID, mainMenu(role == domain.RoleAdmin))
	default:
		b.logger.Debug("ignore unknown command", "command", cmd.Name, "user_id", cmd.Principal.ID)
	}
}

// HandlePress dispatches a button press and always answers the callback.
func (b *Bot) HandlePress(ctx context.Context, press domain.ButtonPress) {
	unlock := b.locks.Lock(press.Principal.ID)
	defer unlock()

	var notice string
	handler, arg, err := b.routes.Resolve(press.Token)
	if err != nil {
		b.logger.Warn("unknown action", "token", press.Token, "user_id", press.Principal.ID)
	} else {
		notice, err = handler(ctx, press, arg)
		if err != nil {
			b.logger.Error("handle action", "token", press.Token, "user_id", press.Principal.ID, "error", err)
		}
	}

	if err := b.messenger.AnswerCallback(ctx, press.CallbackID, notice); err != nil {
		b.logger.Warn("answer callback", "callback_id", press.CallbackID, "error", err)
	}
}

// HandleText feeds free text to the open prompt, or treats it as an
// article reference when no prompt is open.
func (b *Bot) HandleText(ctx context.Context, msg domain.TextMessage) {
	unlock := b.locks.Lock(msg.Principal.ID)
	defer unlock()

	state := b.conversations.Consume(ctx, msg.Principal.ID)
	switch state {
	case conversation.AwaitingArticleNumber:
		b.completeSearch(ctx, msg)
	case conversation.AwaitingNewEditorID:
		b.completeAddEditor(ctx, msg)
	case conversation.AwaitingEditorRemovalID:
		b.completeRemoveEditor(ctx, msg)
	default:
		if strings.HasPrefix(msg.Body, ArticleRefPrefix) {
			b.openReference(ctx, msg)
			return
		}
		b.logger.Debug("ignore free text", "user_id", msg.Principal.ID)
	}
}

// role is evaluated on every request so membership changes apply at once.
func (b *Bot) role(principalID int64) domain.Role {
	switch {
	case b.directory.IsAdmin(principalID):
		return domain.RoleAdmin
	case b.directory.IsEditor(principalID):
		return domain.RoleEditor
	default:
		return domain.RoleUnauthorized
	}
}

func (b *Bot) requireEditor(ctx context.Context, p domain.Principal, chatID int64, action string) bool {
	if b.role(p.ID).CanEdit() {
		return true
	}
	b.deny(ctx, p, chatID, action)
	return false
}

func (b *Bot) requireAdmin(ctx context.Context, p domain.Principal, chatID int64, action string) bool {
	if b.role(p.ID) == domain.RoleAdmin {
		return true
	}
	b.deny(ctx, p, chatID, action)
	return false
}

func (b *Bot) deny(ctx context.Context, p domain.Principal, chatID int64, action string) {
	b.logger.Error("access denied",
		"user_id", p.ID,
		"username", p.Handle,
		"name", p.Name,
		"action", action,
	)
	b.send(ctx, chatID, domain.Message{Text: textAccessDenied})
}

// send delivers msg and logs failures; it reports whether delivery worked.
func (b *Bot) send(ctx context.Context, chatID int64, msg domain.Message) (domain.Surface, bool) {
	surface, err := b.messenger.SendMessage(ctx, chatID, msg)
	if err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
		return domain.Surface{}, false
	}
	return surface, true
}

// replace removes the pressed surface and sends msg in its place.
func (b *Bot) replace(ctx context.Context, surface domain.Surface, msg domain.Message) {
	b.drop(ctx, surface)
	b.send(ctx, surface.ChatID, msg)
}

func (b *Bot) drop(ctx context.Context, surface domain.Surface) {
	err := b.messenger.DeleteMessage(ctx, surface)
	if err != nil && !errors.Is(err, ports.ErrMessageNotFound) {
		b.logger.Warn("delete message", "chat_id", surface.ChatID, "message_id", surface.MessageID, "error", err)
	}
}

func (b *Bot) publish(ctx context.Context, topic string, payload any) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, topic, payload); err != nil {
		b.logger.Warn("publish audit event", "topic", topic, "error", err)
	}
}

func (b *Bot) onNoop(context.Context, domain.ButtonPress, string) (string, error) {
	return "", nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, errors.Join(domain.ErrValidation, err)
	}
	return id, nil
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
