package logx

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts a Logger to cron.Logger. Cron's chatty scheduling
// messages ("schedule", "wake", "run") go to debug.
type cronLogger struct {
	l *Logger
}

// CronLogger returns a cron.Logger backed by the default logger
func CronLogger() cron.Logger {
	return &cronLogger{l: defaultLogger}
}

// CronLogger returns a cron.Logger backed by l
func (l *Logger) CronLogger() cron.Logger {
	return &cronLogger{l: l}
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.log(LevelDebug, "cron: "+msg, kvFields(keysAndValues), nil, nil)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.log(LevelError, "cron: "+msg, kvFields(keysAndValues), nil, err)
}

func kvFields(keysAndValues []interface{}) Fields {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
