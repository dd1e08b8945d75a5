// Package hooks implements the advisory observer chain: an ordered,
// name-keyed registry of PostFetch/PostParse/PostExtract hooks, any of
// which can veto a branch by returning (zero-value, false). A Registry
// is mutated only before an evaluation begins and read lock-free
// thereafter.
package hooks

import (
	"context"

	"github.com/wxpath/wxpath/internal/node"
)

// FetchContext identifies the fetch a PostFetch/PostParse hook is
// observing.
type FetchContext struct {
	URL      string
	Backlink string
	Depth    int
}

// Hook is any subset of the three advisory stages; a hook that doesn't
// implement a stage is simply never called for it (the registry
// type-asserts each stage interface per call site).
type Hook interface {
	Name() string
}

// PostFetch runs on a freshly-downloaded response body, before parsing.
// Returning ok=false drops this branch.
type PostFetch interface {
	Hook
	PostFetch(ctx FetchContext, body []byte) (out []byte, ok bool)
}

// PostParse runs on a freshly-parsed document, before the pipeline
// resumes. Returning ok=false drops this branch.
type PostParse interface {
	Hook
	PostParse(ctx FetchContext, n *node.Node) (out *node.Node, ok bool)
}

// PostExtract runs on every value about to be yielded downstream.
// Returning ok=false drops this value.
type PostExtract interface {
	Hook
	PostExtract(value any) (out any, ok bool)
}

// Registry is the process-wide ordered set of registered hooks, keyed by
// name for idempotent registration (registering the same name twice
// replaces the earlier instance rather than running both).
type Registry struct {
	order  []string
	byName map[string]Hook
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Hook)}
}

// Register adds h, replacing any previously-registered hook of the same
// name in place (preserving its original position in registration
// order).
func (r *Registry) Register(h Hook) {
	name := h.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = h
}

// RunPostFetch runs every registered PostFetch hook in registration
// order; the first one to veto short-circuits the chain.
func (r *Registry) RunPostFetch(ctx context.Context, fc FetchContext, body []byte) ([]byte, bool) {
	for _, name := range r.order {
		h, ok := r.byName[name].(PostFetch)
		if !ok {
			continue
		}
		out, keep := h.PostFetch(fc, body)
		if !keep {
			return nil, false
		}
		body = out
	}
	return body, true
}

// RunPostParse runs every registered PostParse hook in registration
// order.
func (r *Registry) RunPostParse(ctx context.Context, fc FetchContext, n *node.Node) (*node.Node, bool) {
	for _, name := range r.order {
		h, ok := r.byName[name].(PostParse)
		if !ok {
			continue
		}
		out, keep := h.PostParse(fc, n)
		if !keep {
			return nil, false
		}
		n = out
	}
	return n, true
}

// RunPostExtract runs every registered PostExtract hook in registration
// order.
func (r *Registry) RunPostExtract(ctx context.Context, value any) (any, bool) {
	for _, name := range r.order {
		h, ok := r.byName[name].(PostExtract)
		if !ok {
			continue
		}
		out, keep := h.PostExtract(value)
		if !keep {
			return nil, false
		}
		value = out
	}
	return value, true
}
