package provider

import (
	"context"
	"fmt"
	"strings"
)

// Router resolves the adapter for a model id by its "provider/" prefix and
// dispatches to it. The adapter set is built once at startup; model ids are
// unambiguous by construction of the catalog (no two providers share a
// prefix).
type Router struct {
	adapters map[string]Adapter
}

// NewRouter builds a router over the given adapters, keyed by Name().
func NewRouter(adapters ...Adapter) *Router {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Router{adapters: m}
}

// Route dispatches the request to the adapter matching the model's
// provider prefix. A model id without a known prefix yields
// ErrUnsupportedModel.
func (r *Router) Route(ctx context.Context, req Request) (*Response, error) {
	prefix, _, ok := strings.Cut(req.Model, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no provider prefix", ErrUnsupportedModel, req.Model)
	}
	adapter, ok := r.adapters[prefix]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for provider %q", ErrUnsupportedModel, prefix)
	}
	return adapter.Dispatch(ctx, req)
}
