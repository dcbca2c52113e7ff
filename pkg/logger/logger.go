// Package logger adapts slog to the logging interface of the cron scheduler.
package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	log *slog.Logger
}

// NewCron returns a cron.Logger writing through base. Routine scheduling
// chatter is emitted at debug level.
func NewCron(base *slog.Logger) cron.Logger {
	if base == nil {
		base = slog.Default()
	}
	return cronLogger{log: base}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
