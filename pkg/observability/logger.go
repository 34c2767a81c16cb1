package observability

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"
)

// StandardLogger is a Logger implementation built directly on the standard
// library's log package, writing structured lines to stderr. It carries no
// third-party dependency because none of the reference services this
// module is modeled on reach for one either.
type StandardLogger struct {
	prefix string
	fields map[string]interface{}
	level  LogLevel
	logger *log.Logger
}

// NewLogger creates a new StandardLogger with the given prefix, defaulting
// to INFO level.
func NewLogger(prefix string) Logger {
	return &StandardLogger{
		prefix: prefix,
		level:  LogLevelInfo,
		logger: log.New(os.Stderr, "", 0),
	}
}

func (l *StandardLogger) levelEnabled(level LogLevel) bool {
	rank := map[LogLevel]int{
		LogLevelDebug: 0,
		LogLevelInfo:  1,
		LogLevelWarn:  2,
		LogLevelError: 3,
		LogLevelFatal: 4,
	}
	return rank[level] >= rank[l.level]
}

func (l *StandardLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if !l.levelEnabled(level) {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	line := fmt.Sprintf("%s [%s] %s %s", time.Now().UTC().Format(time.RFC3339), level, l.prefix, msg)
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, merged[k])
	}
	l.logger.Println(line)
}

func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) { l.log(LogLevelDebug, msg, fields) }
func (l *StandardLogger) Info(msg string, fields map[string]interface{})  { l.log(LogLevelInfo, msg, fields) }
func (l *StandardLogger) Warn(msg string, fields map[string]interface{})  { l.log(LogLevelWarn, msg, fields) }
func (l *StandardLogger) Error(msg string, fields map[string]interface{}) { l.log(LogLevelError, msg, fields) }
func (l *StandardLogger) Fatal(msg string, fields map[string]interface{}) {
	l.log(LogLevelFatal, msg, fields)
	os.Exit(1)
}

// WithPrefix returns a child logger with a new prefix but the same level
// and accumulated fields.
func (l *StandardLogger) WithPrefix(prefix string) Logger {
	return &StandardLogger{prefix: prefix, fields: l.fields, level: l.level, logger: l.logger}
}

// With returns a child logger that merges the given fields into every
// subsequent call.
func (l *StandardLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StandardLogger{prefix: l.prefix, fields: merged, level: l.level, logger: l.logger}
}

// NoopLogger discards everything. Useful as a default for components
// constructed without an observability stack (e.g. unit tests).
type NoopLogger struct{}

func NewNoopLogger() Logger { return &NoopLogger{} }

func (*NoopLogger) Debug(string, map[string]interface{}) {}
func (*NoopLogger) Info(string, map[string]interface{})  {}
func (*NoopLogger) Warn(string, map[string]interface{})  {}
func (*NoopLogger) Error(string, map[string]interface{}) {}
func (*NoopLogger) Fatal(string, map[string]interface{}) {}
func (l *NoopLogger) WithPrefix(string) Logger             { return l }
func (l *NoopLogger) With(map[string]interface{}) Logger   { return l }
