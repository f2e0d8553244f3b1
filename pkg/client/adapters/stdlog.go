package adapters

import (
	"io"
	"log"
	"strings"

	"github.com/kerlexov/logcollector/pkg/client"
)

// StandardLogWriter is an io.Writer that turns each log line into an entry
type StandardLogWriter struct {
	logger client.Logger
	level  client.Level
	prefix string
}

// NewStandardLogWriter writes at level. Lines starting with prefix have it stripped.
func NewStandardLogWriter(logger client.Logger, level client.Level, prefix string) *StandardLogWriter {
	return &StandardLogWriter{logger: logger, level: level, prefix: prefix}
}

func (w *StandardLogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, w.prefix))
		if line != "" {
			w.logger.Log(w.level, line)
		}
	}
	return len(p), nil
}

// RedirectStandardLog sends output of the standard library logger to the
// collector at info level, and returns a function that restores the previous writer
func RedirectStandardLog(logger client.Logger) (restore func()) {
	previous := log.Writer()
	log.SetOutput(NewStandardLogWriter(logger, client.LevelInfo, log.Prefix()))
	return func() { log.SetOutput(previous) }
}

// NewStandardLogger creates a *log.Logger that writes to the collector
func NewStandardLogger(logger client.Logger, level client.Level) *log.Logger {
	return log.New(NewStandardLogWriter(logger, level, ""), "", 0)
}

var _ io.Writer = (*StandardLogWriter)(nil)
