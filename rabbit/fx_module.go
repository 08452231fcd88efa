package rabbit

import (
	"context"

	"go.uber.org/fx"

	"github.com/queueworks/amqpdispatch/logger"
	"github.com/queueworks/amqpdispatch/metrics"
	"github.com/queueworks/amqpdispatch/router"
)

var _ Observer = (*metrics.Metrics)(nil)

// FXModule wires the AMQP system into an fx application. It expects
// ConnectionSettings and a *router.Router in the graph; a logger and
// metrics are picked up when present. The system is started and
// stopped with the application lifecycle, and registers itself as the
// health reporter of the metrics server.
var FXModule = fx.Module(
	"rabbit",
	fx.Provide(
		NewSystemFromDI,
		func(s *System) Client { return s },
	),
	fx.Invoke(registerSystemLifecycle),
)

// SystemParams collects the dependencies of NewSystemFromDI.
type SystemParams struct {
	fx.In

	Settings ConnectionSettings
	Router   *router.Router
	Logger   *logger.Logger   `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
	Context  Values           `optional:"true"`
}

// Values is the shared application context handed to handlers. Provide
// one in the fx graph to expose values through Message.Context.
type Values map[string]interface{}

// NewSystemFromDI builds a System from injected dependencies.
func NewSystemFromDI(params SystemParams) *System {
	opts := []Option{}
	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Metrics != nil {
		opts = append(opts, WithObserver(params.Metrics))
	}
	if params.Context != nil {
		opts = append(opts, WithContext(params.Context))
	}
	return NewSystem(params.Settings, params.Router, opts...)
}

// SystemLifecycleParams collects the dependencies of
// registerSystemLifecycle.
type SystemLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	System    *System
	Metrics   *metrics.Metrics `optional:"true"`
}

func registerSystemLifecycle(params SystemLifecycleParams) {
	if params.Metrics != nil {
		params.Metrics.SetHealthReporter(params.System)
	}
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return params.System.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return params.System.Stop(ctx)
		},
	})
}
