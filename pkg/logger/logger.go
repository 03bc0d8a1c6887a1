package logger

import (
	"context"
	"course_engine_backend/internal/config"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is a no-op logger until InitLogger runs.
var Log = zap.NewNop()

// Field keys shared by every service log line.
const (
	TraceIDKey    = "traceId"
	SpanIDKey     = "spanId"
	LearnerIDKey  = "learnerId"
	ActivityIDKey = "activityId"
)

func InitLogger(cfg *config.Config) {
	Log = New(cfg.Log, cfg.Server.Mode, zapcore.AddSync(os.Stdout))
}

// New builds the JSON file plus console logger. An empty or unknown level
// falls back to debug in debug mode and info otherwise.
func New(cfg config.LogConfig, mode string, console zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := levelFor(cfg.Level, mode)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), console, level),
	}
	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).Named("course-engine")
}

func levelFor(name, mode string) zapcore.Level {
	if name != "" {
		if lvl, err := zapcore.ParseLevel(name); err == nil {
			return lvl
		}
	}
	if mode == "debug" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// Ctx returns Log tagged with the trace and span ids carried by ctx, so
// log lines can be joined with the jaeger trace of the same request.
func Ctx(ctx context.Context) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return Log
	}
	return Log.With(
		zap.String(TraceIDKey, sc.TraceID().String()),
		zap.String(SpanIDKey, sc.SpanID().String()),
	)
}

// For is Ctx plus the learner and activity ids. Zero ids are omitted.
func For(ctx context.Context, learnerID, activityID uint) *zap.Logger {
	l := Ctx(ctx)
	var fields []zap.Field
	if learnerID != 0 {
		fields = append(fields, zap.Uint(LearnerIDKey, learnerID))
	}
	if activityID != 0 {
		fields = append(fields, zap.Uint(ActivityIDKey, activityID))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
