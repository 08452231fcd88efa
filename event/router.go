package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/queueworks/amqpdispatch/rabbit"
	"github.com/queueworks/amqpdispatch/router"
)

// Handler processes one structured event. The raw message is passed
// along for access to headers and shared context values.
type Handler func(ctx context.Context, key RoutingKey, payload Payload, msg router.Message) error

// Router registers structured event handlers on an underlying topic
// router. Before a handler runs, the routing key and payload are
// parsed; a payload that does not decode fails the delivery without
// invoking the handler. Events touching the same (uuid, object_uuid)
// pair are serialized, so a burst of changes to one object cannot race
// itself.
type Router struct {
	registry *router.Router
}

// NewRouter wraps an existing topic router, or a fresh one when nil.
func NewRouter(registry *router.Router) *Router {
	if registry == nil {
		registry = router.New()
	}
	return &Router{registry: registry}
}

// Registry exposes the underlying topic router for passing to
// rabbit.NewSystem.
func (r *Router) Registry() *router.Router {
	return r.registry
}

// Register binds handler to the service.object.request pattern, with
// Wildcard segments matching any value. The handler queue name is
// derived from name.
func (r *Router) Register(name string, service ServiceType, object ObjectType, request RequestType, handler Handler) error {
	key, err := NewRoutingKey(service, object, request)
	if err != nil {
		return err
	}
	r.registry.RegisterNamed(name, key.String(), adapt(name, handler))
	return nil
}

// adapt turns a typed Handler into a raw router.Handler with parsing
// and per-object serialization.
func adapt(name string, handler Handler) router.Handler {
	parsed := func(ctx context.Context, msg router.Message) error {
		key, err := ParseRoutingKey(msg.RoutingKey)
		if err != nil {
			return fmt.Errorf("%w: %v", rabbit.ErrSerialization, err)
		}
		var payload Payload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			return fmt.Errorf("%w: decoding payload for %s: %v", rabbit.ErrSerialization, name, err)
		}
		return handler(ctx, key, payload, msg)
	}
	return router.Exclusively(objectKey, parsed)
}

// objectKey derives the serialization key from the payload identities.
// Messages whose payload does not decode fall back to sharing one key
// so they cannot bypass each other while failing.
func objectKey(msg router.Message) string {
	var payload Payload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return "unparseable"
	}
	return payload.UUID.String() + "/" + payload.ObjectUUID.String()
}

// Publish encodes payload and publishes it under the given key using
// any publisher, typically a started *rabbit.System.
func Publish(ctx context.Context, publisher Publisher, key RoutingKey, payload Payload) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return publisher.PublishMessage(ctx, key.String(), payload)
}

// Publisher is the publishing surface Publish needs.
type Publisher interface {
	PublishMessage(ctx context.Context, routingKey string, payload interface{}) error
}
