package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConf is the [log] section of the ini config.
type LogConf struct {
	Level string `ini:"level"`
}

// Init initializes the global zerolog logger.
func Init(cfg LogConf) error {
	levelStr := strings.ToLower(cfg.Level)
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
		fmt.Printf("unknown log level %q, defaulting to info\n", levelStr)
	}

	// Force all timestamps to be in UTC.
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}

	log.Logger = zerolog.New(consoleWriter).
		Level(level).
		With().
		Timestamp().
		Logger()

	Info().Msgf("logger initialized at level: %s", level.String())

	return nil
}

// WithComponent tags log lines with a component name, so registry, reaper
// and engine output can be told apart.
func WithComponent(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// Event is a wrapper for a zerolog event.
type Event struct {
	*zerolog.Event
}

func Debug() *Event { return &Event{log.Debug()} }
func Info() *Event  { return &Event{log.Info()} }
func Warn() *Event  { return &Event{log.Warn()} }
func Error() *Event { return &Event{log.Error()} }
func Fatal() *Event { return &Event{log.Fatal()} }

func (e *Event) Str(key, value string) *Event {
	e.Event = e.Event.Str(key, value)
	return e
}

func (e *Event) Int(key string, value int) *Event {
	e.Event = e.Event.Int(key, value)
	return e
}

func (e *Event) Uint16(key string, value uint16) *Event {
	e.Event = e.Event.Uint16(key, value)
	return e
}

func (e *Event) Int64(key string, value int64) *Event {
	e.Event = e.Event.Int64(key, value)
	return e
}

func (e *Event) Dur(key string, value time.Duration) *Event {
	e.Event = e.Event.Dur(key, value)
	return e
}

func (e *Event) Hex(key string, data []byte) *Event {
	e.Event = e.Event.Hex(key, data)
	return e
}

func (e *Event) Bool(key string, value bool) *Event {
	e.Event = e.Event.Bool(key, value)
	return e
}

// Err adds an error field to the event.
func (e *Event) Err(err error) *Event {
	e.Event = e.Event.Err(err)
	return e
}

// Interface adds a field with any type to the event.
func (e *Event) Interface(key string, value interface{}) *Event {
	e.Event = e.Event.Interface(key, value)
	return e
}

// Msg sends the event with a plain message.
func (e *Event) Msg(msg string) {
	e.Event.Msg(msg)
}

// Msgf sends the event with a formatted message.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Event.Msgf(format, v...)
}
