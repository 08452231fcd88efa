package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// Publish sends body to the configured exchange under routingKey and
// waits for the broker to confirm it. Optional header maps are merged
// into the message headers; the active trace context is injected as
// well. Messages are persistent and carry a generated message id.
func (s *System) Publish(ctx context.Context, routingKey string, body []byte, headers ...map[string]interface{}) error {
	if s.State() != Started {
		s.observer.PublishFailed(routingKey)
		return ErrNotStarted
	}

	table := amqp.Table{}
	for _, fields := range headers {
		for key, value := range fields {
			table[key] = value
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, headersCarrier(table))

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.RLock()
	ch := s.channel
	s.mu.RUnlock()

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, s.settings.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	})
	if err != nil {
		s.observer.PublishFailed(routingKey)
		return fmt.Errorf("publishing to %s: %w", routingKey, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		s.observer.PublishFailed(routingKey)
		return fmt.Errorf("%w: %v", ErrPublishNotConfirmed, err)
	}
	if !acked {
		s.observer.PublishFailed(routingKey)
		return ErrPublishNotConfirmed
	}

	s.observer.PublishSucceeded(routingKey)
	s.log.Debug("Message published", nil, map[string]interface{}{
		"routing_key": routingKey,
		"exchange":    s.settings.Exchange,
	})
	return nil
}

// PublishMessage JSON-encodes payload and publishes it under
// routingKey.
func (s *System) PublishMessage(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return s.Publish(ctx, routingKey, body)
}

// sanitizeQueueName maps a derived queue name onto the character set
// RabbitMQ accepts, replacing anything else with an underscore. Handler
// names derived from package paths contain slashes.
func sanitizeQueueName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-' || r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
