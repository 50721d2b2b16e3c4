package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ArticlesBot/internal/conversation"
)

// RedisConversations keeps open prompts next to the sessions so every
// replica sees the prompt a principal is answering.
type RedisConversations struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ conversation.Backend = (*RedisConversations)(nil)

// NewRedisConversations stores prompts under prefix+"prompt:" with a ttl.
func NewRedisConversations(rdb *redis.Client, prefix string, ttl time.Duration) *RedisConversations {
	return &RedisConversations{rdb: rdb, prefix: prefix + "prompt:", ttl: ttl}
}

func (c *RedisConversations) Load(ctx context.Context, principalID int64) (conversation.State, error) {
	return parseState(c.rdb.Get(ctx, c.key(principalID)).Result())
}

func (c *RedisConversations) Store(ctx context.Context, principalID int64, state conversation.State) error {
	if err := c.rdb.Set(ctx, c.key(principalID), int(state), c.ttl).Err(); err != nil {
		return fmt.Errorf("store prompt: %w", err)
	}
	return nil
}

func (c *RedisConversations) Take(ctx context.Context, principalID int64) (conversation.State, error) {
	return parseState(c.rdb.GetDel(ctx, c.key(principalID)).Result())
}

func (c *RedisConversations) Clear(ctx context.Context, principalID int64) error {
	if err := c.rdb.Del(ctx, c.key(principalID)).Err(); err != nil {
		return fmt.Errorf("clear prompt: %w", err)
	}
	return nil
}

func (c *RedisConversations) key(principalID int64) string {
	return c.prefix + key(principalID)
}

func parseState(raw string, err error) (conversation.State, error) {
	if errors.Is(err, redis.Nil) {
		return conversation.Idle, nil
	}
	if err != nil {
		return conversation.Idle, fmt.Errorf("load prompt: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return conversation.Idle, fmt.Errorf("decode prompt %q: %w", raw, err)
	}
	return conversation.State(n), nil
}
