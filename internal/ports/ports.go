package ports

import (
	"context"
	"errors"

	"ArticlesBot/internal/domain"
)

var (
	// ErrMessageNotModified is returned when an edit would leave a surface unchanged.
	ErrMessageNotModified = errors.New("message is not modified")
	// ErrMessageNotFound is returned when the surface to edit or delete is gone.
	ErrMessageNotFound = errors.New("message not found")
)

// ArticleRepository reads and mutates article status records.
// Reads never fail: storage errors are logged and surface as empty results.
type ArticleRepository interface {
	ListArticles(ctx context.Context, filter domain.ArticleStatus, order domain.SortOrder) []domain.Article
	GetArticle(ctx context.Context, id int64) (domain.Article, bool)
	UpdateStatus(ctx context.Context, id, principalID int64, status domain.ArticleStatus) error
	UserHistory(ctx context.Context, principalID int64, limit, offset int) []domain.HistoryEntry
	CountUserHistory(ctx context.Context, principalID int64) int
	GetLinks(ctx context.Context, id int64) (domain.Links, bool)
}

// EditorDirectory answers authorization questions and manages editors.
type EditorDirectory interface {
	IsAdmin(principalID int64) bool
	IsEditor(principalID int64) bool
	Admins() []int64
	ListEditors() ([]domain.Editor, error)
	AddEditor(editor domain.Editor) error
	RemoveEditor(id int64) error
}

// SessionStore keeps per-principal listing state.
type SessionStore interface {
	Get(ctx context.Context, principalID int64) domain.Session
	Set(ctx context.Context, principalID int64, session domain.Session) error
}

// Messenger talks to end users through the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, msg domain.Message) (domain.Surface, error)
	EditMessageText(ctx context.Context, surface domain.Surface, msg domain.Message) error
	EditMessageButtons(ctx context.Context, surface domain.Surface, keyboard domain.Keyboard) error
	DeleteMessage(ctx context.Context, surface domain.Surface) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// EventPublisher mirrors domain changes to the audit channel.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// EventHandler consumes inbound events produced by a transport.
type EventHandler interface {
	HandleCommand(ctx context.Context, cmd domain.Command)
	HandlePress(ctx context.Context, press domain.ButtonPress)
	HandleText(ctx context.Context, msg domain.TextMessage)
}

// Audit topics published through EventPublisher.
const (
	TopicStatusChanged = "article.status_changed"
	TopicEditorAdded   = "editor.added"
	TopicEditorRemoved = "editor.removed"
)

// AuditTopics lists every topic the core publishes.
var AuditTopics = []string{TopicStatusChanged, TopicEditorAdded, TopicEditorRemoved}
