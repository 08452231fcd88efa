package router

import (
	"sync"
)

// Router owns an ordered registry of pattern-to-handler bindings.
// The zero value is not usable; construct with New.
//
// Registration is expected to happen during program initialization,
// before the AMQP system is started, but the registry is nevertheless
// safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	bindings []Binding
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Register associates handler with the given routing-key pattern and
// returns the handler unchanged, so calls can be stacked to bind one
// handler under several patterns.
//
// Registration is additive. Registering a second handler under an
// existing pattern adds a binding rather than replacing one, and
// duplicate identical registrations yield duplicate bindings, each of
// which is invoked for a matching delivery.
//
// The handler name used for queue naming and metrics is derived from the
// function symbol. Closures and method values can collide on derived
// names; use RegisterNamed for those.
//
// Register panics on an empty pattern, since that is a programming error
// which would otherwise surface as a queue bound to nothing.
func (r *Router) Register(pattern string, handler Handler) Handler {
	return r.RegisterNamed(functionName(handler), pattern, handler)
}

// RegisterNamed is Register with an explicit handler name. The name must
// be consistent across program restarts because it is part of the queue
// name derived for the handler.
func (r *Router) RegisterNamed(name, pattern string, handler Handler) Handler {
	if pattern == "" {
		panic("router: empty routing-key pattern")
	}
	if handler == nil {
		panic("router: nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, Binding{
		Pattern: pattern,
		Name:    name,
		Handler: handler,
	})
	return handler
}

// Resolve returns every binding whose pattern matches the given routing
// key under AMQP topic-match rules, in registration order. Duplicate
// registrations produce duplicate entries.
//
// A key matching zero bindings is not an error at this level; the
// dispatch layer treats it as an unhandled message.
func (r *Router) Resolve(routingKey string) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Binding
	for _, b := range r.bindings {
		if Match(b.Pattern, routingKey) {
			matched = append(matched, b)
		}
	}
	return matched
}

// Bindings returns a copy of all registered bindings in registration
// order.
func (r *Router) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Binding(nil), r.bindings...)
}

// Patterns returns the distinct registered patterns in first-seen order.
// The AMQP system uses this to bind queues.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.bindings))
	var patterns []string
	for _, b := range r.bindings {
		if _, ok := seen[b.Pattern]; ok {
			continue
		}
		seen[b.Pattern] = struct{}{}
		patterns = append(patterns, b.Pattern)
	}
	return patterns
}
