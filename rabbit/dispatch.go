package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/queueworks/amqpdispatch/router"
)

// Provider lazily computes a per-message value made available to
// handlers through Message.Value. Providers run once per delivery,
// before any handler; a provider error requeues the message without
// invoking handlers.
type Provider func(ctx context.Context, msg *router.Message) (interface{}, error)

// RegisterProvider registers a named provider. Registration after
// Start is not supported.
func (s *System) RegisterProvider(name string, provider Provider) {
	if name == "" || provider == nil {
		panic("rabbit: provider registration requires a name and a function")
	}
	s.providers[name] = provider
}

// resolve returns the bindings of this queue matching the routing key,
// in registration order.
func (q queueSpec) resolve(routingKey string) []router.Binding {
	var matched []router.Binding
	for _, binding := range q.bindings {
		if router.Match(binding.Pattern, routingKey) {
			matched = append(matched, binding)
		}
	}
	return matched
}

// onMessage dispatches one delivery to every matching handler and
// settles it exactly once. The acknowledgment is all-or-nothing: the
// message is acked only when every matching handler succeeded, and
// nacked with requeue when any failed. Deliveries no handler matches
// are acked and dropped so stale bindings cannot wedge a queue.
func (s *System) onMessage(spec queueSpec, delivery amqp.Delivery) {
	routingKey := delivery.RoutingKey
	s.observer.MessageReceived(routingKey)

	bindings := spec.resolve(routingKey)
	if len(bindings) == 0 {
		s.log.Debug("No handler matches routing key, dropping", nil, map[string]interface{}{
			"routing_key": routingKey,
			"queue":       spec.name,
		})
		s.settle(delivery, nil)
		s.observer.MessageDropped(routingKey)
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), headersCarrier(delivery.Headers))

	msg := router.Message{
		RoutingKey: routingKey,
		Body:       delivery.Body,
		Headers:    map[string]interface{}(delivery.Headers),
		Context:    s.appContext,
		Values:     map[string]interface{}{},
	}

	var dispatchErr error
	if err := s.resolveValues(ctx, &msg); err != nil {
		s.observer.ParseFailed(routingKey)
		s.log.Error("Value provider failed, requeueing", err, map[string]interface{}{
			"routing_key": routingKey,
		})
		dispatchErr = err
	} else {
		for _, binding := range bindings {
			if err := s.invoke(ctx, binding, msg); err != nil {
				dispatchErr = errors.Join(dispatchErr, err)
			}
		}
		if errors.Is(dispatchErr, ErrSerialization) {
			s.observer.ParseFailed(routingKey)
		}
	}

	if err := s.settle(delivery, dispatchErr); err != nil {
		// The channel died mid-flight; the broker redelivers.
		s.log.Warn("Could not settle delivery", err, map[string]interface{}{
			"routing_key": routingKey,
		})
		return
	}

	switch {
	case dispatchErr == nil:
		s.observer.MessageAcked(routingKey)
	case rejectOnly(dispatchErr):
		s.observer.MessageNacked(routingKey, false)
	default:
		s.observer.MessageNacked(routingKey, true)
	}
}

// invoke runs a single handler with panic recovery and instrumentation.
func (s *System) invoke(ctx context.Context, binding router.Binding, msg router.Message) (err error) {
	s.observer.HandlerStarted(msg.RoutingKey, binding.Name)
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", binding.Name, r)
		}
		s.observer.HandlerFinished(msg.RoutingKey, binding.Name, time.Since(started), err)
		fields := map[string]interface{}{
			"handler":     binding.Name,
			"routing_key": msg.RoutingKey,
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrRequeueMessage):
			s.log.Info("Handler requested requeue", nil, fields)
		case errors.Is(err, ErrRejectMessage):
			s.log.Info("Handler rejected message", nil, fields)
		default:
			s.log.Error("Handler failed", err, fields)
		}
	}()

	s.log.Debug("Dispatching message", nil, map[string]interface{}{
		"handler":     binding.Name,
		"routing_key": msg.RoutingKey,
	})
	return binding.Handler(ctx, msg)
}

// resolveValues runs every registered provider and stores the results
// under their names.
func (s *System) resolveValues(ctx context.Context, msg *router.Message) error {
	for name, provider := range s.providers {
		value, err := provider(ctx, msg)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		msg.Values[name] = value
	}
	return nil
}

// settle acks the delivery when err is nil and nacks it otherwise. The
// message is requeued unless every failure asked for rejection.
func (s *System) settle(delivery amqp.Delivery, err error) error {
	if err == nil {
		return delivery.Ack(false)
	}
	return delivery.Nack(false, !rejectOnly(err))
}

// rejectOnly reports whether err consists solely of ErrRejectMessage
// failures, in which case redelivery would be pointless.
func rejectOnly(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, sub := range joined.Unwrap() {
			if !rejectOnly(sub) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, ErrRejectMessage)
}
