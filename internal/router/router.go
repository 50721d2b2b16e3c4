package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ArticlesBot/internal/domain"
)

// Handler serves one button action. arg is the token remainder after a
// prefix route and empty for exact routes. The returned text, if any, is
// shown to the user as the callback answer.
type Handler func(ctx context.Context, press domain.ButtonPress, arg string) (string, error)

type prefixRoute struct {
	prefix  string
	handler Handler
}

// Registry keeps a mapping from action tokens to their handlers.
type Registry struct {
	exact    map[string]Handler
	prefixes []prefixRoute
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{exact: map[string]Handler{}}
}

// Register adds or replaces a handler for an exact token.
func (r *Registry) Register(token string, handler Handler) {
	if r.exact == nil {
		r.exact = map[string]Handler{}
	}
	r.exact[token] = handler
}

// RegisterPrefix routes every token starting with prefix to handler.
// Longer prefixes win over shorter ones.
func (r *Registry) RegisterPrefix(prefix string, handler Handler) {
	for i := range r.prefixes {
		if r.prefixes[i].prefix == prefix {
			r.prefixes[i].handler = handler
			return
		}
	}
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, handler: handler})
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
}

// Resolve returns the handler for token and the argument it carries.
func (r *Registry) Resolve(token string) (Handler, string, error) {
	if handler, ok := r.exact[token]; ok {
		return handler, "", nil
	}
	for _, route := range r.prefixes {
		if strings.HasPrefix(token, route.prefix) {
			return route.handler, strings.TrimPrefix(token, route.prefix), nil
		}
	}
	return nil, "", fmt.Errorf("action %q is not registered", token)
}
