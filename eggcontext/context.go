// Package eggcontext propagates a request-scoped logger through a
// context.Context, adapted from the registry's dcontext package to this
// module's pipelines (Build, Hatch, Verify, Info, Clean run single-threaded,
// but still thread a context so cancellation and logging fields travel
// together through every step).
package eggcontext

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	logstash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   = logrus.StandardLogger().WithField("go.version", runtime.Version())
	defaultLoggerMu sync.RWMutex
)

// Logger is the leveled-logging interface every pipeline step logs through.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithError(err error) *logrus.Entry
}

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithField returns a logger with key=value added, without mutating ctx.
func WithField(ctx context.Context, key string, value interface{}) Logger {
	return GetLogger(ctx).(*logrus.Entry).WithField(key, value)
}

// GetLogger returns the logger carried by ctx, or the package default.
func GetLogger(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the package-wide fallback logger, used by the
// CLI entrypoint once it has parsed -v/--verbose.
func SetDefaultLogger(entry *logrus.Entry) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = entry
}

// ConfigureVerbosity maps a repeated -v flag count onto a logrus level and
// installs it as the default logger.
func ConfigureVerbosity(count int) {
	lvl := logrus.WarnLevel
	switch {
	case count >= 2:
		lvl = logrus.DebugLevel
	case count == 1:
		lvl = logrus.InfoLevel
	}
	l := logrus.New()
	l.SetLevel(lvl)
	SetDefaultLogger(l.WithField("go.version", runtime.Version()))
}

// ConfigureFormatter sets the package logger's output formatter: "text"
// (default), "json", or "logstash" (JSON wrapped in Logstash's schema, for
// hosts shipping CLI logs into an ELK pipeline alongside their other
// tooling). An unrecognized formatter name is an error.
func ConfigureFormatter(name string) error {
	var formatter logrus.Formatter
	switch name {
	case "", "text":
		formatter = &logrus.TextFormatter{TimestampFormat: time.RFC3339Nano}
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	case "logstash":
		formatter = &logstash.LogstashFormatter{
			Formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano},
		}
	default:
		return fmt.Errorf("eggcontext: unsupported log formatter %q", name)
	}

	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	l := logrus.New()
	l.SetFormatter(formatter)
	if entry, ok := defaultLogger.(*logrus.Entry); ok {
		l.SetLevel(entry.Logger.GetLevel())
	}
	defaultLogger = l.WithField("go.version", runtime.Version())
	return nil
}

// Stepf logs a pipeline step at Info level tagged with the pipeline name,
// the shared narrator line every Orchestrator pipeline emits between steps.
func Stepf(ctx context.Context, pipeline, format string, args ...interface{}) {
	GetLogger(ctx).Infof("%s: %s", pipeline, fmt.Sprintf(format, args...))
}
