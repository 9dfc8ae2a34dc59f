package logx

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// callerFrames is the number of logx frames between the call site and zerolog.
const callerFrames = 2

// Fields is a map of structured data
type Fields map[string]interface{}

// Logger is a thin structured facade over a zerolog.Logger
type Logger struct {
	mu       sync.RWMutex
	config   *Config
	zl       zerolog.Logger
	exitFunc func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Level == LevelTrace {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	l := &Logger{
		config:   config,
		exitFunc: os.Exit,
	}
	l.zl = l.build(config.Output)
	return l
}

func (l *Logger) build(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if l.config.Format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !l.config.EnableColors,
			TimeFormat: l.config.TimeFormat,
		}
	}

	ctx := zerolog.New(w).Level(l.config.Level.zerolog()).With()
	if l.config.EnableTimestamp {
		ctx = ctx.Timestamp()
	}
	if l.config.EnableCaller {
		ctx = ctx.CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + callerFrames)
	}
	return ctx.Logger()
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
	l.zl = l.zl.Level(level.zerolog())
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Level
}

// SetOutput rebuilds the underlying writer
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Output = w
	l.zl = l.build(w)
}

// Zerolog exposes the underlying logger for libraries that accept one
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl
}

func (l *Logger) log(level Level, msg string, fields Fields, data interface{}, err error) {
	l.mu.RLock()
	zl := l.zl
	l.mu.RUnlock()

	ev := zl.WithLevel(level.zerolog())
	if ev == nil {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	if len(fields) > 0 {
		ev = ev.Fields(map[string]interface{}(fields))
	}
	if data != nil {
		ev = ev.Interface("data", data)
	}
	ev.Msg(msg)
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

// WithStruct creates a new entry with structured data
func (l *Logger) WithStruct(data interface{}) *Entry {
	return newEntry(l).WithStruct(data)
}

func (l *Logger) exit(code int) {
	l.exitFunc(code)
}
