package adapters

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/kerlexov/logcollector/pkg/client"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type recordedEntry struct {
	level   client.Level
	message string
	fields  map[string]interface{}
}

// recordingLogger captures entries instead of shipping them
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]recordedEntry
	fields  []client.Field
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]recordedEntry{}}
}

func (r *recordingLogger) Debug(msg string, fields ...client.Field) {
	r.Log(client.LevelDebug, msg, fields...)
}
func (r *recordingLogger) Info(msg string, fields ...client.Field) {
	r.Log(client.LevelInfo, msg, fields...)
}
func (r *recordingLogger) Warn(msg string, fields ...client.Field) {
	r.Log(client.LevelWarn, msg, fields...)
}
func (r *recordingLogger) Error(msg string, fields ...client.Field) {
	r.Log(client.LevelError, msg, fields...)
}
func (r *recordingLogger) Fatal(msg string, fields ...client.Field) {
	r.Log(client.LevelFatal, msg, fields...)
}

func (r *recordingLogger) Log(level client.Level, msg string, fields ...client.Field) {
	merged := make(map[string]interface{})
	for _, f := range r.fields {
		merged[f.Key] = f.Value
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, recordedEntry{level: level, message: msg, fields: merged})
}

func (r *recordingLogger) WithFields(fields ...client.Field) client.Logger {
	return &recordingLogger{
		mu:      r.mu,
		entries: r.entries,
		fields:  append(append([]client.Field(nil), r.fields...), fields...),
	}
}

func (r *recordingLogger) recorded() []recordedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEntry(nil), *r.entries...)
}

func TestLogrusHook(t *testing.T) {
	recorder := newRecordingLogger()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.TraceLevel)
	logger.AddHook(NewLogrusHook(recorder))

	logger.WithField("user", "alice").Warn("quota nearly exhausted")
	logger.Trace("tracing")
	logger.Error("failed")

	entries := recorder.recorded()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	tests := []struct {
		level   client.Level
		message string
	}{
		{client.LevelWarn, "quota nearly exhausted"},
		{client.LevelDebug, "tracing"},
		{client.LevelError, "failed"},
	}
	for i, tt := range tests {
		if entries[i].level != tt.level || entries[i].message != tt.message {
			t.Errorf("Entry %d: expected %s %q, got %s %q", i, tt.level, tt.message, entries[i].level, entries[i].message)
		}
	}
	if entries[0].fields["user"] != "alice" {
		t.Errorf("Expected logrus fields to be forwarded, got %v", entries[0].fields)
	}
}

func TestLogrusHookWithLevels(t *testing.T) {
	hook := NewLogrusHookWithLevels(newRecordingLogger(), logrus.ErrorLevel, logrus.FatalLevel)

	if len(hook.Levels()) != 2 {
		t.Errorf("Expected 2 levels, got %v", hook.Levels())
	}
}

func TestZapCore(t *testing.T) {
	recorder := newRecordingLogger()
	logger := NewZapLogger(recorder, zapcore.InfoLevel)

	logger.Debug("filtered out")
	logger.With(zap.String("component", "db")).Error("query failed",
		zap.Int("attempt", 3),
		zap.Error(errors.New("timeout")),
	)

	entries := recorder.recorded()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.level != client.LevelError || entry.message != "query failed" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if entry.fields["component"] != "db" {
		t.Errorf("Expected context field, got %v", entry.fields)
	}
	if entry.fields["attempt"] != int64(3) {
		t.Errorf("Expected attempt 3, got %v (%T)", entry.fields["attempt"], entry.fields["attempt"])
	}
	if entry.fields["error"] != "timeout" {
		t.Errorf("Expected error field, got %v", entry.fields["error"])
	}
}

func TestZapTee(t *testing.T) {
	recorder := newRecordingLogger()
	logger := Tee(zap.NewNop(), recorder, zapcore.WarnLevel)

	logger.Info("local only")
	logger.Warn("forwarded")

	entries := recorder.recorded()
	if len(entries) != 1 || entries[0].message != "forwarded" {
		t.Errorf("Expected only the warning to be forwarded, got %+v", entries)
	}
}

func TestStandardLogWriter(t *testing.T) {
	recorder := newRecordingLogger()
	writer := NewStandardLogWriter(recorder, client.LevelWarn, "app: ")

	input := "app: first line\n\nsecond line\n"
	n, err := writer.Write([]byte(input))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n != len(input) {
		t.Errorf("Expected to consume %d bytes, got %d", len(input), n)
	}

	entries := recorder.recorded()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].message != "first line" || entries[1].message != "second line" {
		t.Errorf("Unexpected messages %q, %q", entries[0].message, entries[1].message)
	}
	if entries[0].level != client.LevelWarn {
		t.Errorf("Expected warn level, got %s", entries[0].level)
	}
}

func TestNewStandardLogger(t *testing.T) {
	recorder := newRecordingLogger()
	logger := NewStandardLogger(recorder, client.LevelError)

	logger.Printf("failed after %d attempts", 3)

	entries := recorder.recorded()
	if len(entries) != 1 || entries[0].message != "failed after 3 attempts" {
		t.Errorf("Unexpected entries %+v", entries)
	}
}

func TestRedirectStandardLog(t *testing.T) {
	recorder := newRecordingLogger()

	flags := log.Flags()
	log.SetFlags(0)
	restore := RedirectStandardLog(recorder)
	defer func() {
		restore()
		log.SetFlags(flags)
	}()

	log.Print("from the standard logger")

	entries := recorder.recorded()
	if len(entries) != 1 || entries[0].message != "from the standard logger" || entries[0].level != client.LevelInfo {
		t.Errorf("Unexpected entries %+v", entries)
	}
}
