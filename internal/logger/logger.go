package logger

import (
	"log"
	"os"
)

// Logger is a wrapper around the standard log.Logger with level prefixes.
type Logger struct {
	*log.Logger
}

// New creates a new logger instance writing to stdout with a service prefix.
func New(prefix string) *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, prefix, log.LstdFlags),
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.Printf("INFO: "+format, v...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, v ...interface{}) {
	l.Printf("WARN: "+format, v...)
}

// Error logs an error message.
func (l *Logger) Error(format string, v ...interface{}) {
	l.Printf("ERROR: "+format, v...)
}

// Fatal logs an error message and exits.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.Printf("FATAL: "+format, v...)
	os.Exit(1)
}
