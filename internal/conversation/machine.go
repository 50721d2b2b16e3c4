// Package conversation tracks which multi-step prompt, if any, a principal is answering.
package conversation

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// State is the single active prompt of a principal.
type State int

const (
	Idle State = iota
	AwaitingArticleNumber
	AwaitingNewEditorID
	AwaitingEditorRemovalID
)

func (s State) String() string {
	switch s {
	case AwaitingArticleNumber:
		return "awaiting_article_number"
	case AwaitingNewEditorID:
		return "awaiting_new_editor_id"
	case AwaitingEditorRemovalID:
		return "awaiting_editor_removal_id"
	default:
		return "idle"
	}
}

// Backend persists open prompts. Missing entries read as Idle.
// Take must read and delete in one step.
type Backend interface {
	Load(ctx context.Context, principalID int64) (State, error)
	Store(ctx context.Context, principalID int64, state State) error
	Take(ctx context.Context, principalID int64) (State, error)
	Clear(ctx context.Context, principalID int64) error
}

// Machine stores one State per principal. Idle is never stored.
// Backend failures are logged and read as Idle.
type Machine struct {
	backend Backend
	logger  *slog.Logger
}

// New runs the machine on backend.
func New(backend Backend, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{backend: backend, logger: logger.With("component", "conversation")}
}

// NewMachine keeps prompts in process memory and forgets those left
// unanswered for ttl.
func NewMachine(ttl, cleanup time.Duration) *Machine {
	return New(NewMemoryBackend(ttl, cleanup), nil)
}

// Begin enters state, replacing any prompt the principal had open.
func (m *Machine) Begin(ctx context.Context, principalID int64, state State) {
	if state == Idle {
		m.Reset(ctx, principalID)
		return
	}
	if err := m.backend.Store(ctx, principalID, state); err != nil {
		m.logger.Error("store prompt", "principal_id", principalID, "state", state, "error", err)
	}
}

// Current reports the active state without consuming it.
func (m *Machine) Current(ctx context.Context, principalID int64) State {
	state, err := m.backend.Load(ctx, principalID)
	if err != nil {
		m.logger.Error("load prompt", "principal_id", principalID, "error", err)
		return Idle
	}
	return state
}

// Consume returns the active state and returns the principal to Idle.
// The caller handles exactly one input for the returned state.
func (m *Machine) Consume(ctx context.Context, principalID int64) State {
	state, err := m.backend.Take(ctx, principalID)
	if err != nil {
		m.logger.Error("take prompt", "principal_id", principalID, "error", err)
		return Idle
	}
	return state
}

// Reset returns the principal to Idle.
func (m *Machine) Reset(ctx context.Context, principalID int64) {
	if err := m.backend.Clear(ctx, principalID); err != nil {
		m.logger.Error("clear prompt", "principal_id", principalID, "error", err)
	}
}

// MemoryBackend keeps prompts in a go-cache with sliding expiry.
type MemoryBackend struct {
	mu     sync.Mutex
	states *cache.Cache
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend evicts prompts idle for ttl, sweeping every cleanup.
func NewMemoryBackend(ttl, cleanup time.Duration) *MemoryBackend {
	return &MemoryBackend{states: cache.New(ttl, cleanup)}
}

func (b *MemoryBackend) Load(_ context.Context, principalID int64) (State, error) {
	if x, found := b.states.Get(key(principalID)); found {
		return x.(State), nil
	}
	return Idle, nil
}

func (b *MemoryBackend) Store(_ context.Context, principalID int64, state State) error {
	b.states.Set(key(principalID), state, cache.DefaultExpiration)
	return nil
}

func (b *MemoryBackend) Take(ctx context.Context, principalID int64) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.Load(ctx, principalID)
	b.states.Delete(key(principalID))
	return state, nil
}

func (b *MemoryBackend) Clear(_ context.Context, principalID int64) error {
	b.states.Delete(key(principalID))
	return nil
}

func key(principalID int64) string {
	return strconv.FormatInt(principalID, 10)
}
