package session

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

// MemoryStore keeps sessions in process memory and evicts idle ones.
type MemoryStore struct {
	cache *cache.Cache
}

var _ ports.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore expires sessions untouched for ttl, purging every cleanup interval.
func NewMemoryStore(ttl, cleanup time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, cleanup)}
}

// Get returns the stored session or a fresh default one.
func (s *MemoryStore) Get(_ context.Context, principalID int64) domain.Session {
	if x, found := s.cache.Get(key(principalID)); found {
		return clone(x.(domain.Session))
	}
	return domain.NewSession()
}

// Set replaces the session and restarts its expiry.
func (s *MemoryStore) Set(_ context.Context, principalID int64, session domain.Session) error {
	s.cache.Set(key(principalID), clone(session), cache.DefaultExpiration)
	return nil
}

// Len reports how many sessions are live.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

func key(principalID int64) string {
	return strconv.FormatInt(principalID, 10)
}

func clone(s domain.Session) domain.Session {
	s.Articles = slices.Clone(s.Articles)
	if s.Surface != nil {
		surface := *s.Surface
		s.Surface = &surface
	}
	return s
}
