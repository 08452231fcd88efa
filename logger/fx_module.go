package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides the Logger to an Fx application and flushes it on
// shutdown.
//
// Dependencies required by this module:
//   - A logger.Config instance must be available in the dependency
//     injection container.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    fx.Provide(func() logger.Config {
//	        return logger.Config{Level: logger.Info, ServiceName: "employee-sync"}
//	    }),
//	)
var FXModule = fx.Module("logger",
	fx.Provide(New),
	fx.Invoke(registerLoggerLifecycle),
)

func registerLoggerLifecycle(lc fx.Lifecycle, log *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync errors on stderr are expected on some platforms and
			// carry no actionable information at shutdown.
			_ = log.Sync()
			return nil
		},
	})
}
