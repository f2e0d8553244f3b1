package models

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	// DefaultQueryLimit is the page size used when a query does not specify one
	DefaultQueryLimit = 100

	// NewLogEventType tags broadcast envelopes carrying a freshly created record
	NewLogEventType = "NEW_LOG"
)

// LogRecord represents a single persisted log entry.
// Records are immutable once created; the only later lifecycle event is a purge.
type LogRecord struct {
	ID            int64           `json:"id"`
	Level         string          `json:"level"`
	Message       string          `json:"message"`
	Details       json.RawMessage `json:"details"`
	Timestamp     time.Time       `json:"timestamp"`
	AppVersion    *string         `json:"appVersion"`
	Platform      *string         `json:"platform"`
	StakeUsername *string         `json:"stakeUsername"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Submission is the inbound payload of a log submission.
// Level and Message are required; everything else is optional and passed through.
type Submission struct {
	Level         string          `json:"level" validate:"required,notblank,max=255"`
	Message       string          `json:"message" validate:"required,notblank"`
	Details       json.RawMessage `json:"details,omitempty" validate:"omitempty,json_document"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
	AppVersion    *string         `json:"appVersion,omitempty" validate:"omitempty,max=255"`
	Platform      *string         `json:"platform,omitempty" validate:"omitempty,max=255"`
	StakeUsername *string         `json:"stakeUsername,omitempty" validate:"omitempty,max=255"`
}

// HasDetails reports whether the submission carries a non-null details payload
func (s *Submission) HasDetails() bool {
	trimmed := bytes.TrimSpace(s.Details)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ToRecord converts the submission into an unsaved record.
// ID, CreatedAt and UpdatedAt are left for the store; Timestamp is zero when absent.
func (s *Submission) ToRecord() *LogRecord {
	record := &LogRecord{
		Level:         s.Level,
		Message:       s.Message,
		AppVersion:    s.AppVersion,
		Platform:      s.Platform,
		StakeUsername: s.StakeUsername,
	}

	if s.HasDetails() {
		record.Details = append(json.RawMessage(nil), bytes.TrimSpace(s.Details)...)
	}

	if s.Timestamp != nil {
		record.Timestamp = s.Timestamp.UTC()
	}

	return record
}

// Filter represents equality constraints applied during a query.
// Empty fields match everything.
type Filter struct {
	StakeUsername string `json:"stakeUsername,omitempty"`
	Level         string `json:"level,omitempty"`
	Search        string `json:"q,omitempty"`
}

// Page selects the [Offset, Offset+Limit) window of an ordered result
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultPage returns the page used when the caller supplies no pagination
func DefaultPage() Page {
	return Page{Limit: DefaultQueryLimit, Offset: 0}
}

// PurgeResult is returned after every record has been removed
type PurgeResult struct {
	Message string `json:"message"`
}

// Envelope wraps a record pushed to real-time listeners
type Envelope struct {
	Type string    `json:"type"`
	Data LogRecord `json:"data"`
}

// HealthStatus represents the health status of a service
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
