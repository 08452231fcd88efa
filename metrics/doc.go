// Package metrics exposes process-wide counters, gauges and histograms
// for the AMQP dispatch library in the Prometheus text exposition
// format.
//
// The package owns an isolated Prometheus registry and an HTTP server
// which serves two endpoints: /metrics for scraping and /healthz for
// liveness, the latter backed by the AMQP system's connection state.
// The exporter is a passive observer: it has no control-flow impact on
// message processing, and a missing or failing exporter never changes
// an acknowledgment outcome.
//
// # Usage
//
//	m := metrics.New(metrics.Config{
//		Address:     ":9090",
//		ServiceName: "employee-sync",
//	})
//	go m.Server.ListenAndServe()
//
//	system := rabbit.NewSystem(settings, rabbit.WithObserver(m))
//	m.SetHealthReporter(system)
//
// Scrape at http://localhost:9090/metrics.
package metrics
