package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesBot/internal/config"
)

type botAPI struct {
	mu      sync.Mutex
	served  bool
	methods []string
	texts   chan string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.methods = append(b.methods, method)
	first := !b.served
	if method == "getUpdates" {
		b.served = true
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getUpdates":
		if first {
			_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":1,"message":{"message_id":1,"from":{"id":1,"first_name":"Admin","username":"boss"},"chat":{"id":1,"type":"private"},"text":"/start"}}]}`)
			return
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	case "sendMessage":
		text, _ := body["text"].(string)
		b.texts <- text
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":10,"chat":{"id":1,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Telegram: config.TelegramConfig{
			BotToken:       "1:test",
			APIURL:         apiURL,
			RequestTimeout: time.Second,
		},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "file:" + filepath.Join(dir, "articles.db"),
			QueryTimeout: time.Second,
			Tables: config.TablesConfig{
				Articles: "DP_article_edits",
				History:  "DP_article_status_history",
				Links:    "TAN_DUB_AL",
			},
		},
		Access: config.AccessConfig{
			Admins:      []int64{1},
			EditorsFile: filepath.Join(dir, "editors.json"),
		},
		Session: config.SessionConfig{
			Backend:         "memory",
			TTL:             time.Hour,
			CleanupInterval: time.Minute,
		},
		Audit:     config.AuditConfig{JournalFile: filepath.Join(dir, "audit.log")},
		Listing:   config.ListingConfig{PageSize: 10, HistoryPageSize: 5},
		Broadcast: config.BroadcastConfig{Concurrency: 2},
	}
}

func TestApplicationAnswersStartOverLongPolling(t *testing.T) {
	t.Parallel()

	api := &botAPI{texts: make(chan string, 8)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := New(ctx, testConfig(t, srv.URL), logger)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	select {
	case text := <-api.texts:
		assert.Contains(t, text, "Главное меню")
	case <-time.After(5 * time.Second):
		t.Fatal("main menu was not sent")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Contains(t, api.methods, "setMyCommands")
	assert.Contains(t, api.methods, "deleteWebhook")
}

func TestNewFailsOnUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Database.Driver = "oracle"
	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
