// Package logging provides the structured logger of the command line tool.
// It is configured from the environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Environment variables read by New.
const (
	EnvLevel  = "JSBRIDGE_LOG_LEVEL"
	EnvPrefix = "JSBRIDGE_LOG_PREFIX"
	EnvToFile = "JSBRIDGE_LOG_TO_FILE"
)

// LoggerCloser wraps a logger and closes its file, if it has one.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(Level())

	prefix, ok := os.LookupEnv(EnvPrefix)
	if !ok {
		prefix = "jsbridge"
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}
	return &LoggerCloser{Logger: lg.WithPrefix(prefix), closer: closer}
}

// New creates a logger from the environment:
//
//	JSBRIDGE_LOG_LEVEL   debug, info, warn, error (default: info)
//	JSBRIDGE_LOG_PREFIX  message prefix (default: "jsbridge")
//	JSBRIDGE_LOG_TO_FILE "1" logs to a timestamped file instead of stderr
func New() *LoggerCloser {
	output := io.Writer(os.Stderr)
	if os.Getenv(EnvToFile) == "1" {
		name := fmt.Sprintf("jsbridge-%s.log", time.Now().Format("20060102-150405"))
		if f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
			output = f
		}
	}
	return NewWithWriter(output)
}

// Level parses JSBRIDGE_LOG_LEVEL.
func Level() log.Level {
	switch os.Getenv(EnvLevel) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
