package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kerlexov/logcollector/pkg/models"
)

// Level is the severity attached to a shipped entry
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Field is a key/value pair stored in an entry's details
type Field struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Logger is the leveled logging surface the adapters forward to
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	Log(level Level, msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// ShipperConfig configures a Shipper
type ShipperConfig struct {
	BufferSize    int
	FlushInterval time.Duration
	AppVersion    string
	Platform      string
	StakeUsername string
	// ErrorHandler is called with every failed flush; nil ignores them
	ErrorHandler func(error)
}

func DefaultShipperConfig() ShipperConfig {
	return ShipperConfig{
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		Platform:      "go",
	}
}

type shipperCore struct {
	client *Client
	config ShipperConfig
	buffer *memoryBuffer

	mu      sync.RWMutex
	closed  bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	flushMu sync.Mutex
}

// Shipper buffers log entries in memory and submits them in the background.
// Logging never blocks on the network; when the buffer is full the oldest
// pending entry is dropped.
type Shipper struct {
	core   *shipperCore
	fields []Field
}

// NewShipper starts a shipper that submits through client
func NewShipper(client *Client, config ShipperConfig) *Shipper {
	defaults := DefaultShipperConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaults.FlushInterval
	}

	core := &shipperCore{
		client: client,
		config: config,
		buffer: newMemoryBuffer(config.BufferSize),
		stopCh: make(chan struct{}),
	}

	core.wg.Add(1)
	go core.flushWorker()

	return &Shipper{core: core}
}

func (s *Shipper) Debug(msg string, fields ...Field) { s.Log(LevelDebug, msg, fields...) }
func (s *Shipper) Info(msg string, fields ...Field)  { s.Log(LevelInfo, msg, fields...) }
func (s *Shipper) Warn(msg string, fields ...Field)  { s.Log(LevelWarn, msg, fields...) }
func (s *Shipper) Error(msg string, fields ...Field) { s.Log(LevelError, msg, fields...) }
func (s *Shipper) Fatal(msg string, fields ...Field) { s.Log(LevelFatal, msg, fields...) }

// Log queues an entry; it is a no-op once the shipper is closed
func (s *Shipper) Log(level Level, msg string, fields ...Field) {
	s.core.mu.RLock()
	closed := s.core.closed
	s.core.mu.RUnlock()
	if closed {
		return
	}

	all := make([]Field, 0, len(s.fields)+len(fields))
	all = append(all, s.fields...)
	all = append(all, fields...)

	s.core.buffer.Add(s.core.submission(level, msg, all))
}

// WithFields returns a logger that adds fields to every entry. It shares
// the parent's buffer and lifecycle.
func (s *Shipper) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(s.fields)+len(fields))
	merged = append(merged, s.fields...)
	merged = append(merged, fields...)

	return &Shipper{core: s.core, fields: merged}
}

// Pending returns the number of entries waiting to be sent
func (s *Shipper) Pending() int {
	return s.core.buffer.Size()
}

// Dropped returns how many entries were evicted from a full buffer
func (s *Shipper) Dropped() uint64 {
	return s.core.buffer.Dropped()
}

// Flush submits every pending entry
func (s *Shipper) Flush(ctx context.Context) error {
	return s.core.flush(ctx)
}

// Close stops the background worker and makes a final flush attempt
func (s *Shipper) Close() error {
	core := s.core

	core.mu.Lock()
	if core.closed {
		core.mu.Unlock()
		return nil
	}
	core.closed = true
	core.mu.Unlock()

	close(core.stopCh)
	core.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return core.flush(ctx)
}

func (c *shipperCore) submission(level Level, msg string, fields []Field) models.Submission {
	now := time.Now().UTC()
	submission := models.Submission{
		Level:         string(level),
		Message:       msg,
		Timestamp:     &now,
		AppVersion:    models.StringPtr(c.config.AppVersion),
		Platform:      models.StringPtr(c.config.Platform),
		StakeUsername: models.StringPtr(c.config.StakeUsername),
	}

	if len(fields) > 0 {
		submission.Details = encodeFields(fields)
	}

	return submission
}

// encodeFields renders fields as a JSON object. Values that cannot be
// marshalled are stored as their fmt representation.
func encodeFields(fields []Field) json.RawMessage {
	details := make(map[string]any, len(fields))
	for _, field := range fields {
		value := field.Value
		if err, ok := value.(error); ok {
			value = err.Error()
		} else if _, err := json.Marshal(value); err != nil {
			value = fmt.Sprint(value)
		}
		details[field.Key] = value
	}

	data, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	return data
}

func (c *shipperCore) flushWorker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.FlushInterval)
			c.flush(ctx)
			cancel()
		}
	}
}

// flush submits pending entries in order. On a retryable failure the unsent
// entries are requeued for the next flush; rejected entries are dropped.
func (c *shipperCore) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	entries := c.buffer.Drain()
	var firstErr error

	for i, entry := range entries {
		if _, err := c.client.Submit(ctx, entry); err != nil {
			c.reportError(err)
			if firstErr == nil {
				firstErr = err
			}
			if IsRetryable(err) || IsType(err, ErrTypeCircuitOpen) || ctx.Err() != nil {
				c.buffer.Requeue(entries[i:])
				return firstErr
			}
		}
	}

	return firstErr
}

func (c *shipperCore) reportError(err error) {
	if c.config.ErrorHandler != nil {
		c.config.ErrorHandler(err)
	}
}
