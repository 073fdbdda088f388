// Package log provides the process-wide structured logger.
package log

import (
	"os"
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu       sync.RWMutex
	logger   Logger
	fallback = sync.OnceValue(func() Logger {
		l, _ := newLogrusLogger(&Config{}, os.Stderr)
		return l
	})
)

// GetLogger returns the global logger. Before Init it returns an info-level
// logger writing to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return fallback()
	}
	return logger
}

// Init builds the global logger from cfg. It may be called again to apply
// a new configuration.
func Init(cfg *Config) error {
	l, err := newLogrusLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
