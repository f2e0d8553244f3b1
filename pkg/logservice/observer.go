package logservice

import (
	"context"

	"github.com/kerlexov/logcollector/pkg/models"
)

// RecordObserver is notified after a record has been persisted.
// Observers run synchronously on the submit path, so Submit returns only once
// every observer has seen the record. The broadcast registry only enqueues and
// never blocks; the search index writes the record before returning so it is
// searchable as soon as Submit succeeds.
type RecordObserver interface {
	RecordCreated(record models.LogRecord)
}

// PurgeObserver is notified after every record has been removed
type PurgeObserver interface {
	RecordsPurged()
}

// Searcher resolves free-text queries to record ids, newest first
type Searcher interface {
	Search(ctx context.Context, text string, filter models.Filter, page models.Page) ([]int64, error)
}

// MetricsReporter receives service-level counters
type MetricsReporter interface {
	IncrementLogsIngested(level string)
	IncrementValidationErrors()
	IncrementStorageErrors(op string)
	IncrementPurges()
}

// RecordObserverFunc adapts a function to RecordObserver
type RecordObserverFunc func(record models.LogRecord)

// RecordCreated calls f(record)
func (f RecordObserverFunc) RecordCreated(record models.LogRecord) {
	f(record)
}

type noopMetrics struct{}

func (noopMetrics) IncrementLogsIngested(string)  {}
func (noopMetrics) IncrementValidationErrors()    {}
func (noopMetrics) IncrementStorageErrors(string) {}
func (noopMetrics) IncrementPurges()              {}
