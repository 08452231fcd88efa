package router

import "context"

// Message is the call context passed to every handler invocation.
// It combines the delivery itself with the ambient data a handler may
// need: the shared application context supplied at system construction
// and any values resolved by registered providers.
type Message struct {
	// RoutingKey is the key the message was published with.
	RoutingKey string

	// Body is the raw message payload.
	Body []byte

	// Headers carries the AMQP message headers, including any
	// propagated trace context.
	Headers map[string]interface{}

	// Context is the caller-supplied shared mapping made available to
	// every handler. Its lifetime spans the system's open connection.
	Context map[string]interface{}

	// Values holds dependency-injected values resolved by the provider
	// registry before the handler was invoked.
	Values map[string]interface{}
}

// ContextValue looks up a named entry in the shared application context.
// The second return reports whether the name was present.
func (m Message) ContextValue(name string) (interface{}, bool) {
	v, ok := m.Context[name]
	return v, ok
}

// Value looks up a dependency-injected value by provider name.
func (m Message) Value(name string) (interface{}, bool) {
	v, ok := m.Values[name]
	return v, ok
}

// Handler is a callback bound to one or more routing-key patterns.
// Returning a non-nil error causes the delivery to be negatively
// acknowledged and redelivered.
type Handler func(ctx context.Context, msg Message) error

// Binding associates a registered pattern with its handler.
type Binding struct {
	// Pattern is the routing-key pattern the handler was registered under.
	Pattern string

	// Name identifies the handler for queue naming, logging and metrics.
	Name string

	// Handler is the registered callback.
	Handler Handler
}
