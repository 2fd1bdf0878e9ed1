package logger

import (
	"log"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

// Logger is a leveled logger wrapping a standard *log.Logger. A nil
// underlying logger drops all output, which tests rely on.
type Logger struct {
	logger *log.Logger
	level  LogLevel
	tag    string
}

func NewLogger(logger *log.Logger, level LogLevel) *Logger {
	return &Logger{
		logger: logger,
		level:  level,
	}
}

// WithTag returns a logger that prefixes every message with [tag].
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		tag:    tag,
	}
}

func (l *Logger) printf(level LogLevel, prefix, format string, v ...interface{}) {
	if l.logger == nil || l.level < level {
		return
	}
	if l.tag != "" {
		format = "[" + l.tag + "] " + prefix + format
	} else {
		format = prefix + format
	}
	l.logger.Printf(format, v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.printf(LogLevelDebug, "DEBUG: ", format, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.printf(LogLevelInfo, "", format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.printf(LogLevelWarning, "WARN: ", format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.printf(LogLevelError, "ERROR: ", format, v...)
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	if l.logger == nil {
		log.Fatalf(format, v...)
		return
	}
	if l.tag != "" {
		format = "[" + l.tag + "] FATAL: " + format
	} else {
		format = "FATAL: " + format
	}
	l.logger.Fatalf(format, v...)
}
