package log

import (
	"context"
	"log/slog"
	"os"
)

// slogProvider backs the Logger interface with the process-wide slog default,
// so the stacktrace extraction in ErrFmtHandler applies to every component
// logger.
type slogProvider struct {
	level *slog.LevelVar
}

// UseSlog switches structured logging to log/slog with a JSON handler on
// stdout. Level changes through SetLevel remain effective after the switch.
// Panics on an unknown level string, like ToLogLevel.
func UseSlog(loglevel string) {
	lv := new(slog.LevelVar)
	lv.Set(ToLogLevel(loglevel))
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     lv,
	}
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(os.Stdout, &ops))
	slog.SetDefault(slog.New(handler))
	SetProvider(&slogProvider{level: lv})
}

func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{sl: slog.Default()}
}

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{sl: slog.Default().With(ComponentKey, name)}
}

func (p *slogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	sl *slog.Logger
}

func (l *slogLogger) Debug(msg string, fields ...any) {
	l.sl.Debug(msg, fields...)
}

func (l *slogLogger) Info(msg string, fields ...any) {
	l.sl.Info(msg, fields...)
}

func (l *slogLogger) Warn(msg string, fields ...any) {
	l.sl.Warn(msg, fields...)
}

func (l *slogLogger) Error(msg string, fields ...any) {
	l.sl.Error(msg, fields...)
}

func (l *slogLogger) With(fields ...any) Logger {
	return &slogLogger{sl: l.sl.With(fields...)}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.sl.Enabled(ctx, slog.Level(level))
}
