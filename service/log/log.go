package log

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

var defaultLogger *zap.Logger

func init() {
	var err error
	if defaultLogger, err = zap.NewProduction(); err != nil {
		panic(err)
	}
}

// SetDefault replaces the logger returned when the context does not carry one.
// It must be called before the logger is used concurrently.
func SetDefault(logger *zap.Logger) {
	defaultLogger = logger
}

// Debug configures the default logger with the development config (debug level, console encoder)
func Debug() error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	SetDefault(logger)
	return nil
}

// Logger returns the logger attached to ctx, or the default logger
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return defaultLogger
}

// WithLogger returns a copy of ctx carrying logger
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// With returns a copy of ctx whose logger has the additional field key=value
func With(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, Logger(ctx).With(zap.Any(key, value)))
}

// Fatal logs with the default logger and exits
func Fatal(msg string, fields ...zap.Field) {
	defaultLogger.Fatal(msg, fields...)
}
