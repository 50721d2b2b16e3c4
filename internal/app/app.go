package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ArticlesBot/internal/config"
	"ArticlesBot/internal/conversation"
	"ArticlesBot/internal/infrastructure/editors"
	"ArticlesBot/internal/infrastructure/events"
	"ArticlesBot/internal/infrastructure/session"
	"ArticlesBot/internal/infrastructure/storage"
	"ArticlesBot/internal/infrastructure/telegram"
	"ArticlesBot/internal/logging"
	"ArticlesBot/internal/ports"
	"ArticlesBot/internal/usecase"
	"ArticlesBot/pkg/logger"
)

var botCommands = []telegram.BotCommand{
	{Command: usecase.CommandStart, Description: "Главное меню"},
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db        *sql.DB
	redis     *redis.Client
	client    *telegram.Client
	bot       *usecase.Bot
	bus       *events.Bus
	consumer  *events.AuditConsumer
	journal   *logger.Journal
	forwarder *events.NATSForwarder
}

// New connects every adapter and builds the bot.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.File)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	if cfg.Database.Driver == "sqlite" {
		if err := storage.EnsureSchema(ctx, db, cfg.Database.Tables); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	articles := storage.NewSQLRepository(db, cfg.Database, baseLogger.With("component", "storage"))

	directory := editors.NewFileDirectory(cfg.Access.EditorsFile, cfg.Access.Admins, baseLogger.With("component", "editors"))

	sessions, err := a.sessionStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.journal = logger.NewJournal(cfg.Audit.JournalFile)
	a.bus = events.NewBus()
	var forwarder events.Forwarder
	if cfg.Audit.NatsURL != "" {
		a.forwarder, err = events.NewNATSForwarder(cfg.Audit.NatsURL, cfg.Audit.SubjectPrefix)
		if err != nil {
			a.Close()
			return nil, err
		}
		forwarder = a.forwarder
	}
	a.consumer = events.NewAuditConsumer(a.bus, a.journal, forwarder, baseLogger)

	a.client = telegram.NewClient(cfg.Telegram, baseLogger)
	a.bot = usecase.NewBot(usecase.BotDeps{
		Directory:            directory,
		Articles:             articles,
		Sessions:             sessions,
		Conversations:        a.conversations(),
		Messenger:            a.client,
		Publisher:            a.bus,
		Logger:               baseLogger,
		PageSize:             cfg.Listing.PageSize,
		HistoryPageSize:      cfg.Listing.HistoryPageSize,
		BroadcastConcurrency: cfg.Broadcast.Concurrency,
	})
	return a, nil
}

func (a *Application) sessionStore(ctx context.Context) (ports.SessionStore, error) {
	if a.cfg.Session.Backend != "redis" {
		return session.NewMemoryStore(a.cfg.Session.TTL, a.cfg.Session.CleanupInterval), nil
	}

	a.redis = session.NewRedisClient(a.cfg.Session.RedisURL)
	store := session.NewRedisStore(a.redis, a.cfg.Session.KeyPrefix, a.cfg.Session.TTL, a.logger.With("component", "sessions"))
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return store, nil
}

// conversations shares prompts through Redis whenever sessions live there.
func (a *Application) conversations() *conversation.Machine {
	if a.redis != nil {
		return conversation.New(session.NewRedisConversations(a.redis, a.cfg.Session.KeyPrefix, a.cfg.Session.TTL), a.logger)
	}
	return conversation.New(conversation.NewMemoryBackend(a.cfg.Session.TTL, a.cfg.Session.CleanupInterval), a.logger)
}

// Run receives updates until ctx is cancelled and then releases resources.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.consumer.Start(ctx, ports.AuditTopics); err != nil {
		return fmt.Errorf("start audit consumer: %w", err)
	}

	if err := a.client.SetMyCommands(ctx, botCommands); err != nil {
		a.logger.Warn("set bot commands", "error", err)
	}

	webhook := a.cfg.Telegram.Webhook
	if webhook.Enabled() {
		if err := a.client.SetWebhook(ctx, webhook.URL, webhook.SecretToken); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		a.logger.Info("receiving updates by webhook", "url", webhook.URL)
		return telegram.NewWebhookServer(webhook, a.bot, a.logger).Run(ctx)
	}

	if err := a.client.DeleteWebhook(ctx); err != nil {
		a.logger.Warn("delete webhook", "error", err)
	}
	a.logger.Info("receiving updates by long polling")
	return telegram.NewPoller(a.client, a.bot, a.cfg.Telegram.PollTimeout, a.logger).Run(ctx)
}

// Close stops the audit pipeline and closes every connection.
func (a *Application) Close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("close audit bus", "error", err)
		}
		a.bus = nil
	}
	if a.consumer != nil {
		waitTimeout(a.consumer.Wait, 5*time.Second)
	}
	if a.forwarder != nil {
		a.forwarder.Close()
		a.forwarder = nil
	}
	if a.journal != nil {
		// Syncing stdout fails on some terminals; only the file sink matters.
		if err := a.journal.Sync(); err != nil {
			a.logger.Debug("sync audit journal", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

func waitTimeout(wait func(), timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
