package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin wrapper around Uber's Zap logger.
// The underlying zap.Logger is exposed for call sites that need
// Zap-specific functionality; everything else should go through the
// leveled wrapper methods.
type Logger struct {
	// Zap is the underlying zap.Logger instance.
	Zap *zap.Logger
}

// New builds a configured Logger.
//
// The logger encodes JSON with ISO8601 timestamps, capitalized levels,
// caller information, and the process ID and service name as initial
// fields. Output goes to stderr. If the underlying Zap build fails
// (which only happens on malformed output paths), New terminates the
// process, matching the behavior expected from a logger that cannot be
// constructed.
func New(cfg Config) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	logLevel := zap.InfoLevel
	switch cfg.Level {
	case Debug:
		logLevel = zap.DebugLevel
	case Info:
		logLevel = zap.InfoLevel
	case Warning:
		logLevel = zap.WarnLevel
	case Error:
		logLevel = zap.ErrorLevel
	}

	encoding := "json"
	if cfg.Development {
		encoding = "console"
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config := zap.Config{
		Level:         zap.NewAtomicLevelAt(logLevel),
		Development:   cfg.Development,
		Encoding:      encoding,
		EncoderConfig: encoderCfg,
		OutputPaths: []string{
			"stderr",
		},
		ErrorOutputPaths: []string{
			"stderr",
		},
		InitialFields: map[string]interface{}{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	zl, err := config.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		log.Fatal(err)
	}

	return &Logger{Zap: zl}
}

// NewNop returns a Logger that discards everything. Useful in tests and
// as the default for components whose logger was never injected.
func NewNop() *Logger {
	return &Logger{Zap: zap.NewNop()}
}

// Sync flushes any buffered log entries. Programs should call it before
// exiting.
func (l *Logger) Sync() error {
	return l.Zap.Sync()
}
