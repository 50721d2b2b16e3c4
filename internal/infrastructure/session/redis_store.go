package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// RedisStore shares sessions between bot replicas.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.SessionStore = (*RedisStore)(nil)

// NewRedisClient parses a redis:// URL, falling back to a bare address.
func NewRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	return redis.NewClient(opt)
}

// NewRedisStore stores sessions under prefix with a sliding ttl.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

// Get returns the stored session; a missing key or a backend failure yields a default session.
func (s *RedisStore) Get(ctx context.Context, principalID int64) domain.Session {
	raw, err := s.rdb.Get(ctx, s.key(principalID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error("load session", "principal_id", principalID, "error", err)
		}
		return domain.NewSession()
	}

	session, err := decode(raw)
	if err != nil {
		s.logger.Error("decode session", "principal_id", principalID, "error", err)
		return domain.NewSession()
	}
	return session
}

// Set writes the session and refreshes its ttl.
func (s *RedisStore) Set(ctx context.Context, principalID int64, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(principalID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Ping checks connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) key(principalID int64) string {
	return s.prefix + key(principalID)
}

func decode(raw []byte) (domain.Session, error) {
	session := domain.NewSession()
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, err
	}
	if session.Page < 1 {
		session.Page = 1
	}
	if session.Order == "" {
		session.Order = domain.SortAscending
	}
	return session, nil
}
