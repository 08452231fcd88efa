package metrics

// Config holds the settings for the metrics HTTP server.
type Config struct {
	// Address is the listen address of the exposition endpoint,
	// e.g. ":9090".
	Address string

	// ServiceName is attached to every metric as a constant "service"
	// label, so several services scraped by one collector can be told
	// apart.
	ServiceName string

	// EnableDefaultCollectors registers the standard Go runtime,
	// process, and build info collectors alongside the AMQP metrics.
	EnableDefaultCollectors bool
}
