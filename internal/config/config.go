package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "ARTICLES_BOT_CONFIG"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	webhookURLEnv     = "WEBHOOK_URL"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	adminsEnv         = "BOT_ADMINS"
	editorsFileEnv    = "EDITORS_FILE"
	redisURLEnv       = "REDIS_URL"
	natsURLEnv        = "NATS_URL"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Database  DatabaseConfig  `yaml:"database"`
	Access    AccessConfig    `yaml:"access"`
	Session   SessionConfig   `yaml:"session"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Listing   ListingConfig   `yaml:"listing"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// TelegramConfig wires all data required to reach the Bot API.
type TelegramConfig struct {
	BotToken       string        `yaml:"botToken" validate:"required"`
	APIURL         string        `yaml:"apiUrl" validate:"required,url"`
	PollTimeout    time.Duration `yaml:"pollTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout" validate:"gt=0"`
	Webhook        WebhookConfig `yaml:"webhook"`
}

// WebhookConfig switches the transport from long polling to a webhook when URL is set.
type WebhookConfig struct {
	URL         string `yaml:"url" validate:"omitempty,url"`
	Listen      string `yaml:"listen"`
	Path        string `yaml:"path"`
	SecretToken string `yaml:"secretToken"`
}

// Enabled reports whether updates arrive through the webhook.
func (w WebhookConfig) Enabled() bool {
	return strings.TrimSpace(w.URL) != ""
}

// DatabaseConfig describes the article store connection.
type DatabaseConfig struct {
	Driver       string        `yaml:"driver" validate:"oneof=postgres mysql sqlite"`
	DSN          string        `yaml:"dsn" validate:"required"`
	QueryTimeout time.Duration `yaml:"queryTimeout" validate:"gt=0"`
	Tables       TablesConfig  `yaml:"tables"`
	// RecordHistory makes status changes append to the history table.
	// Off by default: upstream owns that table and the bot only reads it.
	RecordHistory bool `yaml:"recordHistory"`
}

// TablesConfig names the legacy tables the bot reads and writes.
type TablesConfig struct {
	Articles string `yaml:"articles" validate:"required"`
	History  string `yaml:"history" validate:"required"`
	Links    string `yaml:"links" validate:"required"`
}

// AccessConfig lists static admins and the editor file location.
type AccessConfig struct {
	Admins      []int64 `yaml:"admins"`
	EditorsFile string  `yaml:"editorsFile" validate:"required"`
}

// SessionConfig selects where per-user listing state lives.
type SessionConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=memory redis"`
	TTL             time.Duration `yaml:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	RedisURL        string        `yaml:"redisUrl" validate:"required_if=Backend redis"`
	KeyPrefix       string        `yaml:"keyPrefix"`
}

// AuditConfig controls the audit journal and its external mirror.
type AuditConfig struct {
	JournalFile   string `yaml:"journalFile"`
	NatsURL       string `yaml:"natsUrl"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// LoggingConfig controls operational logs.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ListingConfig sets page sizes of the listing and history views.
type ListingConfig struct {
	PageSize        int `yaml:"pageSize" validate:"gt=0"`
	HistoryPageSize int `yaml:"historyPageSize" validate:"gt=0"`
}

// BroadcastConfig bounds the admin notification fan-out.
type BroadcastConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gt=0"`
}

// Load reads YAML configuration (if present), .env, and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable to start the bot.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Telegram.Webhook.URL = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(adminsEnv); v != "" {
		admins, err := ParseIDs(v)
		if err != nil {
			log.Printf("config: ignoring %s: %v", adminsEnv, err)
		} else {
			c.Access.Admins = admins
		}
	}

	if v := os.Getenv(editorsFileEnv); v != "" {
		c.Access.EditorsFile = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Session.RedisURL = v
		c.Session.Backend = "redis"
	}

	if v := os.Getenv(natsURLEnv); v != "" {
		c.Audit.NatsURL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// ParseIDs reads a comma separated list of numeric principal ids.
func ParseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mergeConfig(base, override Config) Config {
	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.APIURL != "" {
		base.Telegram.APIURL = override.Telegram.APIURL
	}
	if override.Telegram.PollTimeout > 0 {
		base.Telegram.PollTimeout = override.Telegram.PollTimeout
	}
	if override.Telegram.RequestTimeout > 0 {
		base.Telegram.RequestTimeout = override.Telegram.RequestTimeout
	}
	if override.Telegram.Webhook.URL != "" {
		base.Telegram.Webhook.URL = override.Telegram.Webhook.URL
	}
	if override.Telegram.Webhook.Listen != "" {
		base.Telegram.Webhook.Listen = override.Telegram.Webhook.Listen
	}
	if override.Telegram.Webhook.Path != "" {
		base.Telegram.Webhook.Path = override.Telegram.Webhook.Path
	}
	if override.Telegram.Webhook.SecretToken != "" {
		base.Telegram.Webhook.SecretToken = override.Telegram.Webhook.SecretToken
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.QueryTimeout > 0 {
		base.Database.QueryTimeout = override.Database.QueryTimeout
	}
	if override.Database.RecordHistory {
		base.Database.RecordHistory = true
	}
	if override.Database.Tables.Articles != "" {
		base.Database.Tables.Articles = override.Database.Tables.Articles
	}
	if override.Database.Tables.History != "" {
		base.Database.Tables.History = override.Database.Tables.History
	}
	if override.Database.Tables.Links != "" {
		base.Database.Tables.Links = override.Database.Tables.Links
	}

	if len(override.Access.Admins) > 0 {
		base.Access.Admins = override.Access.Admins
	}
	if override.Access.EditorsFile != "" {
		base.Access.EditorsFile = override.Access.EditorsFile
	}

	if override.Session.Backend != "" {
		base.Session.Backend = override.Session.Backend
	}
	if override.Session.TTL > 0 {
		base.Session.TTL = override.Session.TTL
	}
	if override.Session.CleanupInterval > 0 {
		base.Session.CleanupInterval = override.Session.CleanupInterval
	}
	if override.Session.RedisURL != "" {
		base.Session.RedisURL = override.Session.RedisURL
	}
	if override.Session.KeyPrefix != "" {
		base.Session.KeyPrefix = override.Session.KeyPrefix
	}

	if override.Audit.JournalFile != "" {
		base.Audit.JournalFile = override.Audit.JournalFile
	}
	if override.Audit.NatsURL != "" {
		base.Audit.NatsURL = override.Audit.NatsURL
	}
	if override.Audit.SubjectPrefix != "" {
		base.Audit.SubjectPrefix = override.Audit.SubjectPrefix
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Listing.PageSize > 0 {
		base.Listing.PageSize = override.Listing.PageSize
	}
	if override.Listing.HistoryPageSize > 0 {
		base.Listing.HistoryPageSize = override.Listing.HistoryPageSize
	}

	if override.Broadcast.Concurrency > 0 {
		base.Broadcast.Concurrency = override.Broadcast.Concurrency
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Telegram: TelegramConfig{
			APIURL:         "https://api.telegram.org",
			PollTimeout:    30 * time.Second,
			RequestTimeout: 10 * time.Second,
			Webhook:        WebhookConfig{Listen: ":8080", Path: "/telegram/webhook"},
		},
		Database: DatabaseConfig{
			Driver:       "mysql",
			DSN:          "user:pass@tcp(localhost:3306)/articles",
			QueryTimeout: 5 * time.Second,
			Tables: TablesConfig{
				Articles: "DP_article_edits",
				History:  "DP_article_status_history",
				Links:    "TAN_DUB_AL",
			},
		},
		Access: AccessConfig{EditorsFile: "editors.json"},
		Session: SessionConfig{
			Backend:         "memory",
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
			KeyPrefix:       "articlesbot:session:",
		},
		Audit:     AuditConfig{SubjectPrefix: "audit"},
		Logging:   LoggingConfig{Level: "info"},
		Listing:   ListingConfig{PageSize: 10, HistoryPageSize: 5},
		Broadcast: BroadcastConfig{Concurrency: 4},
	}
}
