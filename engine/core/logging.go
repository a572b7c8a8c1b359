package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel uint8

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Tiny3D 🧊 ",
			})
			l.SetLevel(log.DebugLevel)
			singleton = &logger{l}
		})
	return singleton
}

// ParseLogLevel maps the configuration names onto a LogLevel. Unknown names
// fall back to info.
func ParseLogLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

func SetLogLevel(level LogLevel) {
	l := getLogger()
	switch level {
	case LogLevelDebug:
		l.SetLevel(log.DebugLevel)
	case LogLevelInfo:
		l.SetLevel(log.InfoLevel)
	case LogLevelWarn:
		l.SetLevel(log.WarnLevel)
	case LogLevelError:
		l.SetLevel(log.ErrorLevel)
	case LogLevelFatal:
		l.SetLevel(log.FatalLevel)
	}
}

// SetLogOutput redirects the engine log. Subsystem loggers created before the
// call keep their previous writer.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

// Logger returns a sub-logger tagged with the subsystem name, e.g. "RHI".
func Logger(subsystem string) *log.Logger {
	return getLogger().WithPrefix(getLogger().GetPrefix() + "[" + subsystem + "]")
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
