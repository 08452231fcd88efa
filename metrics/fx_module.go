package metrics

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"

	"github.com/queueworks/amqpdispatch/logger"
)

// FXModule integrates the metrics server into an Fx application.
//
// The module provides the Metrics factory to the dependency injection
// container and registers lifecycle hooks which start the exposition
// server on application start and shut it down gracefully on stop.
//
// Dependencies required by this module:
//   - A metrics.Config instance must be available in the container.
//   - A *logger.Logger is optional; lifecycle events go unlogged
//     without it.
var FXModule = fx.Module("metrics",
	fx.Provide(New),
	fx.Invoke(RegisterMetricsLifecycle),
)

// MetricsLifecycleParams groups the dependencies needed to manage the
// metrics server lifecycle.
type MetricsLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    *logger.Logger `optional:"true"`
}

// RegisterMetricsLifecycle starts the exposition HTTP server in a
// background goroutine on application start and shuts it down on stop.
// It is invoked automatically by FXModule.
func RegisterMetricsLifecycle(params MetricsLifecycleParams) {
	log := params.Logger
	if log == nil {
		log = logger.NewNop()
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("Starting metrics server", nil, map[string]interface{}{
					"address": params.Metrics.Server.Addr,
				})
				err := params.Metrics.Server.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Metrics server failed", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down metrics server", nil, nil)
			return params.Metrics.Server.Shutdown(ctx)
		},
	})
}
