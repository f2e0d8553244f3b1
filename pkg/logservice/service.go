package logservice

import (
	"context"
	"sync"

	"github.com/kerlexov/logcollector/pkg/models"
	"github.com/kerlexov/logcollector/pkg/storage"
	"github.com/kerlexov/logcollector/pkg/validation"
	"go.uber.org/zap"
)

// PurgeMessage is returned after a successful purge
const PurgeMessage = "All logs have been deleted."

// Options configures a Service
type Options struct {
	Logger    *zap.Logger
	Metrics   MetricsReporter
	Searcher  Searcher
	Observers []RecordObserver
}

// Service implements the log record lifecycle: submit, query and purge
type Service struct {
	store     storage.RecordStore
	validator *validation.SubmissionValidator
	logger    *zap.Logger
	metrics   MetricsReporter
	searcher  Searcher

	// writeMu orders purges against creates so observers see the same
	// sequence of changes as the store. Creates hold it shared.
	writeMu sync.RWMutex

	observersMu sync.RWMutex
	observers   []RecordObserver
}

// New creates a log service writing through to store
func New(store storage.RecordStore, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var metrics MetricsReporter = noopMetrics{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}

	return &Service{
		store:     store,
		validator: validation.NewSubmissionValidator(),
		logger:    logger.Named("logservice"),
		metrics:   metrics,
		searcher:  opts.Searcher,
		observers: append([]RecordObserver(nil), opts.Observers...),
	}
}

// AddObserver registers an observer; observers are notified in registration order
func (s *Service) AddObserver(observer RecordObserver) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()

	s.observers = append(s.observers, observer)
}

// Submit validates a submission, persists it and notifies observers.
// The returned record carries the generated id and timestamps.
func (s *Service) Submit(ctx context.Context, submission models.Submission) (*models.LogRecord, error) {
	result := s.validator.ValidateSubmission(&submission)
	if !result.IsValid {
		s.metrics.IncrementValidationErrors()
		return nil, &ValidationError{Fields: result.Errors}
	}

	record := submission.ToRecord()

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	if err := s.store.Create(ctx, record); err != nil {
		s.metrics.IncrementStorageErrors("create")
		s.logger.Error("failed to persist log record", zap.Error(err))
		return nil, &PersistenceError{Op: "create", Err: err}
	}

	s.metrics.IncrementLogsIngested(record.Level)
	s.notifyCreated(*record)

	return record, nil
}

// Query returns records matching filter, newest first, sliced by page
func (s *Service) Query(ctx context.Context, filter models.Filter, page models.Page) ([]models.LogRecord, error) {
	if filter.Search != "" && s.searcher != nil {
		records, err := s.searchRecords(ctx, filter, page)
		if err == nil {
			return records, nil
		}
		s.logger.Warn("search index query failed, falling back to store", zap.Error(err))
	}

	records, err := s.store.List(ctx, filter, page)
	if err != nil {
		s.metrics.IncrementStorageErrors("query")
		s.logger.Error("failed to query log records", zap.Error(err))
		return nil, &PersistenceError{Op: "query", Err: err}
	}

	return records, nil
}

func (s *Service) searchRecords(ctx context.Context, filter models.Filter, page models.Page) ([]models.LogRecord, error) {
	ids, err := s.searcher.Search(ctx, filter.Search, filter, page)
	if err != nil {
		return nil, err
	}

	return s.store.GetByIDs(ctx, ids)
}

// PurgeAll removes every record and resets the id sequence
func (s *Service) PurgeAll(ctx context.Context) (*models.PurgeResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Truncate(ctx); err != nil {
		s.metrics.IncrementStorageErrors("purge")
		s.logger.Error("failed to purge log records", zap.Error(err))
		return nil, &PersistenceError{Op: "purge", Err: err}
	}

	s.metrics.IncrementPurges()
	s.notifyPurged()

	return &models.PurgeResult{Message: PurgeMessage}, nil
}

func (s *Service) snapshotObservers() []RecordObserver {
	s.observersMu.RLock()
	defer s.observersMu.RUnlock()

	return append([]RecordObserver(nil), s.observers...)
}

func (s *Service) notifyCreated(record models.LogRecord) {
	for _, observer := range s.snapshotObservers() {
		s.safeNotify(func() { observer.RecordCreated(record) })
	}
}

func (s *Service) notifyPurged() {
	for _, observer := range s.snapshotObservers() {
		if purgeObserver, ok := observer.(PurgeObserver); ok {
			s.safeNotify(purgeObserver.RecordsPurged)
		}
	}
}

func (s *Service) safeNotify(notify func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panicked", zap.Any("panic", r))
		}
	}()

	notify()
}
