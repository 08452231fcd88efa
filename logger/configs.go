package logger

// Level represents the minimum severity of log entries that will be emitted.
type Level int

const (
	// Debug emits everything, including per-message dispatch logs.
	Debug Level = iota

	// Info emits lifecycle and registration events. This is the default.
	Info

	// Warning emits recoverable problems, such as reconnect attempts.
	Warning

	// Error emits failures only.
	Error
)

// Config holds the settings used to build a Logger.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// ServiceName is attached to every log entry as the "service" field.
	// The consuming program name is a good candidate.
	ServiceName string

	// Development switches to a human-readable console encoding with
	// colored levels. Production (the default) encodes JSON.
	Development bool
}
