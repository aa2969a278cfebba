package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
)

func init() {
	globalLogger = zap.NewNop()
}

// Init installs a JSON production logger tagged with the service name.
// Unknown levels fall back to info.
func Init(level string) error {
	cfg := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.InitialFields = map[string]any{"service": "devotional"}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	Set(logger)
	return nil
}

// Set replaces the global logger. A nil logger installs a no-op logger.
func Set(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	globalLogger = logger
}

// Logger returns the configured global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return globalLogger
}

// Sync flushes buffered log entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Info logs an informational message using the global logger.
func Info(msg string, fields ...zap.Field) {
	Logger().Info(msg, fields...)
}

// Warn logs a warning message using the global logger.
func Warn(msg string, fields ...zap.Field) {
	Logger().Warn(msg, fields...)
}
