package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"ArticlesBot/internal/conversation"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/infrastructure/editors"
	"ArticlesBot/internal/infrastructure/session"
	"ArticlesBot/internal/ports"
)

type sentMessage struct {
	ChatID  int64
	Surface domain.Surface
	Msg     domain.Message
}

type editCall struct {
	Surface domain.Surface
	Msg     domain.Message
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int64
	shown    map[domain.Surface]string
	sent     []sentMessage
	edits    []editCall
	stripped []domain.Surface
	deleted  []domain.Surface
	answers  []string

	sendErr map[int64]error
	editErr error
}

var _ ports.Messenger = (*fakeMessenger)(nil)

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		shown:   map[domain.Surface]string{},
		sendErr: map[int64]error{},
	}
}

func fingerprint(msg domain.Message) string {
	return fmt.Sprintf("%s|%v", msg.Text, msg.Keyboard)
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, msg domain.Message) (domain.Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendErr[chatID]; err != nil {
		return domain.Surface{}, err
	}
	m.nextID++
	surface := domain.Surface{ChatID: chatID, MessageID: m.nextID}
	m.shown[surface] = fingerprint(msg)
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Surface: surface, Msg: msg})
	return surface, nil
}

func (m *fakeMessenger) EditMessageText(_ context.Context, surface domain.Surface, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.editErr != nil {
		return m.editErr
	}
	current, ok := m.shown[surface]
	if !ok {
		return ports.ErrMessageNotFound
	}
	if current == fingerprint(msg) {
		return ports.ErrMessageNotModified
	}
	m.shown[surface] = fingerprint(msg)
	m.edits = append(m.edits, editCall{Surface: surface, Msg: msg})
	return nil
}

func (m *fakeMessenger) EditMessageButtons(_ context.Context, surface domain.Surface, _ domain.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stripped = append(m.stripped, surface)
	return nil
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, surface domain.Surface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shown[surface]; !ok {
		return ports.ErrMessageNotFound
	}
	delete(m.shown, surface)
	m.deleted = append(m.deleted, surface)
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *fakeMessenger) sentTo(chatID int64) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s.Msg)
		}
	}
	return out
}

func (m *fakeMessenger) last(chatID int64) domain.Message {
	msgs := m.sentTo(chatID)
	if len(msgs) == 0 {
		return domain.Message{}
	}
	return msgs[len(msgs)-1]
}

type row struct {
	status   domain.ArticleStatus
	assignee int64
}

type fakeRepository struct {
	mu      sync.Mutex
	rows    map[int64]*row
	links   map[int64]domain.Links
	history []struct {
		user  int64
		entry domain.HistoryEntry
	}
	updateErr error
}

var _ ports.ArticleRepository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: map[int64]*row{}, links: map[int64]domain.Links{}}
}

func (r *fakeRepository) seed(id, assignee int64, status domain.ArticleStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id] = &row{status: status, assignee: assignee}
}

func (r *fakeRepository) ListArticles(_ context.Context, filter domain.ArticleStatus, order domain.SortOrder) []domain.Article {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Article
	for id, rw := range r.rows {
		if !slices.Contains(domain.ListedStatuses, rw.status) {
			continue
		}
		if filter != "" && rw.status != filter {
			continue
		}
		out = append(out, domain.Article{ID: id, Status: rw.status})
	}
	sort.Slice(out, func(i, j int) bool {
		if order == domain.SortDescending {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *fakeRepository) GetArticle(_ context.Context, id int64) (domain.Article, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rw, ok := r.rows[id]
	if !ok {
		return domain.Article{}, false
	}
	return domain.Article{ID: id, Status: rw.status}, true
}

func (r *fakeRepository) UpdateStatus(_ context.Context, id, principalID int64, status domain.ArticleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	rw, ok := r.rows[id]
	if !ok || rw.assignee != principalID {
		return fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	rw.status = status
	r.history = append(r.history, struct {
		user  int64
		entry domain.HistoryEntry
	}{principalID, domain.HistoryEntry{ArticleID: id, Status: status}})
	return nil
}

func (r *fakeRepository) userEntries(principalID int64) []domain.HistoryEntry {
	var out []domain.HistoryEntry
	for _, h := range r.history {
		if h.user == principalID && slices.Contains(domain.HistoryStatuses, h.entry.Status) {
			out = append(out, h.entry)
		}
	}
	return out
}

func (r *fakeRepository) UserHistory(_ context.Context, principalID int64, limit, offset int) []domain.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.userEntries(principalID)
	if offset >= len(entries) {
		return nil
	}
	return entries[offset:min(offset+limit, len(entries))]
}

func (r *fakeRepository) CountUserHistory(_ context.Context, principalID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userEntries(principalID))
}

func (r *fakeRepository) GetLinks(_ context.Context, id int64) (domain.Links, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	links, ok := r.links[id]
	return links, ok
}

type publishedEvent struct {
	Topic   string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic
	}
	return out
}

const (
	adminID  int64 = 1
	editorID int64 = 100
	outsider int64 = 999
)

type harness struct {
	bot       *Bot
	messenger *fakeMessenger
	repo      *fakeRepository
	directory *editors.FileDirectory
	sessions  *session.MemoryStore
	machine   *conversation.Machine
	publisher *fakePublisher
}

func newHarness(t *testing.T, admins ...int64) *harness {
	t.Helper()
	if len(admins) == 0 {
		admins = []int64{adminID}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := editors.NewFileDirectory(filepath.Join(t.TempDir(), "editors.json"), admins, logger)
	if err := directory.AddEditor(domain.Editor{ID: editorID, Name: "Editor", Handle: "editor"}); err != nil {
		t.Fatalf("seed editor: %v", err)
	}

	h := &harness{
		messenger: newFakeMessenger(),
		repo:      newFakeRepository(),
		directory: directory,
		sessions:  session.NewMemoryStore(time.Hour, time.Hour),
		machine:   conversation.NewMachine(time.Hour, time.Hour),
		publisher: &fakePublisher{},
	}
	h.bot = NewBot(BotDeps{
		Directory:     h.directory,
		Articles:      h.repo,
		Sessions:      h.sessions,
		Conversations: h.machine,
		Messenger:     h.messenger,
		Publisher:     h.publisher,
		Logger:        logger,
		PageSize:      10,
	})
	return h
}

func principal(id int64) domain.Principal {
	return domain.Principal{ID: id, Name: "User Name", Handle: "user"}
}

func (h *harness) press(id int64, token string, surface domain.Surface) {
	h.bot.HandlePress(context.Background(), domain.ButtonPress{
		Token:      token,
		CallbackID: "cb",
		Principal:  principal(id),
		Surface:    surface,
	})
}

func (h *harness) text(id int64, body string) {
	h.bot.HandleText(context.Background(), domain.TextMessage{Body: body, ChatID: id, Principal: principal(id)})
}

var errBlocked = errors.New("Forbidden: bot was blocked by the user")
