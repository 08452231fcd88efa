// Package logger provides structured logging built on Uber's Zap.
//
// The package wraps zap.Logger behind a small surface tailored to the
// needs of the dispatch library: leveled logging methods which accept an
// optional error and free-form field maps, so call sites do not need to
// build zap.Field slices by hand.
//
// # Direct Usage
//
//	log := logger.New(logger.Config{
//		Level:       logger.Info,
//		ServiceName: "employee-sync",
//	})
//	defer log.Sync()
//
//	log.Info("Consumer started", nil, map[string]interface{}{
//		"queue": "employee-sync_on_address_edit",
//	})
//
// # Usage With FX
//
//	app := fx.New(
//		logger.FXModule,
//		fx.Provide(func() logger.Config {
//			return logger.Config{Level: logger.Info, ServiceName: "employee-sync"}
//		}),
//	)
package logger
