package config

import "github.com/YuminosukeSato/gbdata/pkg/log"

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) String() string {
	return string(l)
}

// Level converts l to a pkg/log level.
func (l LogLevel) Level() (log.Level, error) {
	return log.ParseLevel(string(l))
}

type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

type ConfigLog struct {
	Level  LogLevel  `json:"level"`
	Format LogFormat `json:"format"`
}
