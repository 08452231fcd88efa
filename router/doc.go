// Package router maps AMQP routing-key patterns to message handlers.
//
// A Router is a registry of bindings from topic-exchange patterns to
// handler functions. Registration is additive: the same handler may be
// registered under several patterns, several handlers may share one
// pattern, and duplicate registrations are kept as duplicate bindings.
// Resolution returns every binding whose pattern matches a concrete
// routing key under AMQP topic semantics, where "*" matches exactly one
// dot-separated segment and "#" matches zero or more segments.
//
// # Registering Handlers
//
//	r := router.New()
//
//	onEdit := r.Register("employee.*.edit", func(ctx context.Context, msg router.Message) error {
//		// handle the message
//		return nil
//	})
//
//	// Stacking: bind the same handler to a second pattern.
//	r.Register("org_unit.*.edit", onEdit)
//
// Register returns the handler unchanged so registrations can be stacked
// the way decorators stack in other ecosystems.
//
// # Exclusive Handling
//
// Exclusively wraps a handler so that two messages sharing a derived key
// are never processed concurrently, preventing lost-update races on the
// same logical entity. Messages with distinct keys proceed in parallel.
//
//	h := router.Exclusively(func(msg router.Message) string {
//		return msg.RoutingKey
//	}, onEdit)
package router
