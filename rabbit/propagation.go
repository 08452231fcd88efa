package rabbit

import amqp "github.com/rabbitmq/amqp091-go"

// headersCarrier adapts an AMQP header table to the OpenTelemetry
// TextMapCarrier interface so trace context survives the broker hop.
type headersCarrier amqp.Table

func (c headersCarrier) Get(key string) string {
	value, ok := c[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return text
}

func (c headersCarrier) Set(key, value string) {
	c[key] = value
}

func (c headersCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	return keys
}
