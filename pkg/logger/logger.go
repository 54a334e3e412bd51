package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init builds the process-wide logger once. Every entry carries the service
// role so that logs from the gateway and the backends can be told apart.
func Init(level, service string) error {
	var err error
	once.Do(func() {
		globalLogger, err = newLogger(level, service)
	})
	return err
}

// Get returns the global logger, falling back to an info-level logger when
// Init was never called (tests, one-off commands).
func Get() *zap.Logger {
	if globalLogger == nil {
		_ = Init("info", "gestor")
	}
	return globalLogger
}

func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

func newLogger(level, service string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.InitialFields = map[string]interface{}{"service": service}

	return config.Build()
}
