package log

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. Components that accept a Printf-style
// logger default to it.
var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.Formatter = &logrus.TextFormatter{
		DisableLevelTruncation: true,
		PadLevelText:           true,
		TimestampFormat:        "2006/01/02 15:04:05",
		FullTimestamp:          true,
	}
}

// Printer is the minimal logging interface accepted by kiosk components.
type Printer interface {
	Printf(format string, args ...any)
}

// OrDefault returns p, or the shared logger when p is nil.
func OrDefault(p Printer) Printer {
	if p == nil {
		return Logger
	}
	return p
}

// SetLevel parses a level name ("debug", "info", ...) and applies it.
func SetLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	Logger.SetLevel(lvl)
	return nil
}

func Printf(format string, args ...any) {
	Logger.Printf(format, args...)
}

// Leveled is implemented by loggers that distinguish severities, such as
// *logrus.Logger. Printers without levels receive everything via Printf.
type Leveled interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Debugf logs through p at debug level.
func Debugf(p Printer, format string, args ...any) {
	if l, ok := OrDefault(p).(Leveled); ok {
		l.Debugf(format, args...)
		return
	}
	OrDefault(p).Printf(format, args...)
}

// Warnf logs through p at warning level.
func Warnf(p Printer, format string, args ...any) {
	if l, ok := OrDefault(p).(Leveled); ok {
		l.Warnf(format, args...)
		return
	}
	OrDefault(p).Printf(format, args...)
}

// Errorf logs through p at error level.
func Errorf(p Printer, format string, args ...any) {
	if l, ok := OrDefault(p).(Leveled); ok {
		l.Errorf(format, args...)
		return
	}
	OrDefault(p).Printf(format, args...)
}
