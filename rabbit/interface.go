package rabbit

import (
	"context"
	"time"
)

// State is the lifecycle state of a System. The progression is
// Unstarted, Connecting, Started, Stopping, Stopped; Failed is reached
// from any state on an unrecoverable error.
type State int32

const (
	Unstarted State = iota
	Connecting
	Started
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Connecting:
		return "connecting"
	case Started:
		return "started"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Client is the consumer-facing surface of a System.
type Client interface {
	// Start connects to the broker, declares the topology derived from
	// the registered handlers, and begins consuming.
	Start(ctx context.Context) error

	// Stop cancels consumption, waits for in-flight handlers, and
	// closes the connection. It is idempotent.
	Stop(ctx context.Context) error

	// Run starts the system and blocks until the context is cancelled
	// or the connection fails unrecoverably, then stops it.
	Run(ctx context.Context) error

	// WithConnection runs fn within a started system, stopping it when
	// fn returns.
	WithConnection(ctx context.Context, fn func(ctx context.Context) error) error

	// Publish sends a raw message to the configured exchange and waits
	// for broker confirmation.
	Publish(ctx context.Context, routingKey string, body []byte, headers ...map[string]interface{}) error

	// PublishMessage JSON-encodes payload and publishes it.
	PublishMessage(ctx context.Context, routingKey string, payload interface{}) error

	// State returns the current lifecycle state.
	State() State

	// Healthy reports whether the connection and channel are open.
	Healthy() bool
}

// Observer receives instrumentation callbacks from the system. It is
// satisfied by *metrics.Metrics; a no-op implementation is used when
// none is injected.
type Observer interface {
	ConnectionEstablished()
	ConnectionLost()
	ConnectionReestablished()
	CallbackRegistered(routingKey string)
	RouteBound(function string)
	MessageReceived(routingKey string)
	MessageAcked(routingKey string)
	MessageNacked(routingKey string, requeued bool)
	MessageDropped(routingKey string)
	ParseFailed(routingKey string)
	HandlerStarted(routingKey, function string)
	HandlerFinished(routingKey, function string, duration time.Duration, err error)
	PublishSucceeded(routingKey string)
	PublishFailed(routingKey string)
	QueueBacklog(queue string, messages int)
}

type nopObserver struct{}

func (nopObserver) ConnectionEstablished()                                  {}
func (nopObserver) ConnectionLost()                                         {}
func (nopObserver) ConnectionReestablished()                                {}
func (nopObserver) CallbackRegistered(string)                               {}
func (nopObserver) RouteBound(string)                                       {}
func (nopObserver) MessageReceived(string)                                  {}
func (nopObserver) MessageAcked(string)                                     {}
func (nopObserver) MessageNacked(string, bool)                              {}
func (nopObserver) MessageDropped(string)                                   {}
func (nopObserver) ParseFailed(string)                                      {}
func (nopObserver) HandlerStarted(string, string)                           {}
func (nopObserver) HandlerFinished(string, string, time.Duration, error)    {}
func (nopObserver) PublishSucceeded(string)                                 {}
func (nopObserver) PublishFailed(string)                                    {}
func (nopObserver) QueueBacklog(string, int)                                {}

type nopLogger struct{}

func (nopLogger) Debug(string, error, ...map[string]interface{}) {}
func (nopLogger) Info(string, error, ...map[string]interface{})  {}
func (nopLogger) Warn(string, error, ...map[string]interface{})  {}
func (nopLogger) Error(string, error, ...map[string]interface{}) {}
