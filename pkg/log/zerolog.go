package log

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"

	emigoerrors "github.com/YuminosukeSato/emigo/pkg/errors"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// zerologProvider is the default LoggerProvider, backed by zerolog.
type zerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

var (
	defaultProvider *zerologProvider
	providerOnce    sync.Once

	activeMu       sync.RWMutex
	activeProvider LoggerProvider
)

func provider() *zerologProvider {
	providerOnce.Do(func() {
		base := zerolog.New(os.Stderr).With().Timestamp().Logger()
		defaultProvider = &zerologProvider{base: base}
	})
	return defaultProvider
}

// SetProvider swaps the backend behind GetLogger and GetLoggerWithName.
// Passing nil restores the zerolog default.
func SetProvider(p LoggerProvider) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeProvider = p
}

func currentProvider() LoggerProvider {
	activeMu.RLock()
	defer activeMu.RUnlock()
	if activeProvider != nil {
		return activeProvider
	}
	return provider()
}

// GetLogger returns the default structured logger.
func GetLogger() Logger {
	return currentProvider().GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
//
// Example:
//
//	logger := log.GetLoggerWithName("tune.search")
//	logger.Info("candidate evaluated", log.CandidateKey, 3)
func GetLoggerWithName(name string) Logger {
	return currentProvider().GetLoggerWithName(name)
}

// SetLevel sets the global minimum level for the active provider.
func SetLevel(level Level) {
	currentProvider().SetLevel(level)
}

// BridgeWarnings routes recoverable warnings raised through pkg/errors into
// the structured logger, so that e.g. degenerate candidates show up as
// zerolog events instead of stdlib log lines.
func BridgeWarnings() {
	logger := GetLoggerWithName("warnings")
	emigoerrors.SetZerologWarnFunc(func(warning error) {
		logger.Warn("recoverable warning", ErrAttrKey, warning)
	})
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// emit attaches key/value pairs to the event. Values implementing
// zerolog.LogObjectMarshaler (all structured errors in pkg/errors do) are
// logged as nested objects; plain errors go through AnErr.
func (l *zerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
