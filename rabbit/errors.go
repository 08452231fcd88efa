package rabbit

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrConfiguration signals invalid or contradictory connection
	// settings. It is always raised before any connection attempt.
	ErrConfiguration = errors.New("invalid connection settings")

	// ErrNotStarted is returned by operations requiring an established
	// connection, such as Publish, when the system is not started.
	ErrNotStarted = errors.New("amqp system is not started")

	// ErrAlreadyStarted is returned by Start when the system has
	// already been started. A system instance is single-use.
	ErrAlreadyStarted = errors.New("amqp system is already started")

	// ErrConnectionFailed signals an unrecoverable connection failure,
	// such as refused credentials or a missing virtual host.
	ErrConnectionFailed = errors.New("amqp connection failed")

	// ErrPublishNotConfirmed is returned when the broker nacks a
	// published message or the confirmation wait is cancelled.
	ErrPublishNotConfirmed = errors.New("publish was not confirmed by the broker")

	// ErrSerialization signals a payload that could not be encoded or
	// decoded.
	ErrSerialization = errors.New("payload serialization failed")

	// ErrRejectMessage can be returned (or wrapped) by a handler to
	// reject the current message without requeueing it. On quorum
	// queues with a dead-letter policy the message is dead-lettered,
	// otherwise it is dropped.
	ErrRejectMessage = errors.New("reject message")

	// ErrRequeueMessage can be returned (or wrapped) by a handler to
	// explicitly requeue the current message for redelivery.
	ErrRequeueMessage = errors.New("requeue message")
)

// fatalAmqpCodes are broker reply codes that will not succeed on retry.
// Everything else, including plain network errors, is treated as
// transient and subject to the reconnect loop.
var fatalAmqpCodes = map[int]bool{
	amqp.InvalidPath:    true,
	amqp.AccessRefused:  true,
	amqp.NotAllowed:     true,
	amqp.NotImplemented: true,
}

func isFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfiguration) {
		return true
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return fatalAmqpCodes[amqpErr.Code]
	}
	return false
}

// isPreconditionFailed reports a queue declaration rejected because a
// queue of the same name already exists with different arguments. Used
// to fall back from quorum to classic queue declaration.
func isPreconditionFailed(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed
}
