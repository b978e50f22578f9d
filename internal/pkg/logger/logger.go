package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

const (
	TraceIDKey = "trace_id"
	SpanIDKey  = "span_id"
)

// Setup builds the global production logger.
func Setup() error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.LevelKey = "severity"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Set replaces the global logger, mostly for tests.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// L returns the global logger.
func L() *zap.Logger {
	return logger
}

// Sync flushes buffered entries.
func Sync() {
	_ = logger.Sync()
}

func traceFields(ctx context.Context, fields []zap.Field) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return fields
	}
	return append(fields,
		zap.String(TraceIDKey, sc.TraceID().String()),
		zap.String(SpanIDKey, sc.SpanID().String()),
	)
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// InfoCtx logs with the trace and span ids of the span carried by ctx.
func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Info(msg, traceFields(ctx, fields)...)
}

// WarnCtx logs with the trace and span ids of the span carried by ctx.
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Warn(msg, traceFields(ctx, fields)...)
}

// ErrorCtx logs with the trace and span ids of the span carried by ctx.
func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Error(msg, traceFields(ctx, fields)...)
}
