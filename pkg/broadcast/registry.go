package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerlexov/logcollector/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handle identifies a registered listener
type Handle string

// Listener is a connected real-time subscriber.
// Send must not block; a transport queues the payload and writes it on its own goroutine.
type Listener interface {
	Open() bool
	Send(payload []byte) error
	Close() error
}

// MetricsReporter receives broadcast counters
type MetricsReporter interface {
	IncrementBroadcasts()
	IncrementDeliveryFailures()
	SetListeners(n int)
}

// Options configures a Registry
type Options struct {
	Logger  *zap.Logger
	Metrics MetricsReporter
}

type subscription struct {
	handle   Handle
	listener Listener
}

// Registry holds the set of connected listeners and fans new records out to them
type Registry struct {
	mu        sync.RWMutex
	listeners map[Handle]Listener

	logger     *zap.Logger
	metrics    MetricsReporter
	failureLog rate.Sometimes
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		listeners:  make(map[Handle]Listener),
		logger:     logger.Named("broadcast"),
		metrics:    opts.Metrics,
		failureLog: rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Subscribe registers a listener. Records published earlier are not replayed.
func (r *Registry) Subscribe(listener Listener) Handle {
	handle := Handle(uuid.NewString())

	r.mu.Lock()
	r.listeners[handle] = listener
	count := len(r.listeners)
	r.mu.Unlock()

	r.reportListeners(count)
	r.logger.Debug("listener subscribed", zap.String("handle", string(handle)), zap.Int("listeners", count))

	return handle
}

// Unsubscribe removes a listener; unknown handles are ignored
func (r *Registry) Unsubscribe(handle Handle) {
	r.mu.Lock()
	_, ok := r.listeners[handle]
	delete(r.listeners, handle)
	count := len(r.listeners)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.reportListeners(count)
	r.logger.Debug("listener unsubscribed", zap.String("handle", string(handle)), zap.Int("listeners", count))
}

// Count returns the number of registered listeners
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.listeners)
}

// Publish delivers record to every open listener at most once.
// Delivery failures are logged and counted, never returned.
func (r *Registry) Publish(record models.LogRecord) {
	payload, err := json.Marshal(models.Envelope{Type: models.NewLogEventType, Data: record})
	if err != nil {
		r.logger.Error("failed to encode broadcast envelope", zap.Int64("id", record.ID), zap.Error(err))
		return
	}

	if r.metrics != nil {
		r.metrics.IncrementBroadcasts()
	}

	for _, sub := range r.snapshot() {
		if !sub.listener.Open() {
			continue
		}

		if err := sub.listener.Send(payload); err != nil {
			r.deliveryFailed(&DeliveryError{Handle: sub.handle, Err: err})
		}
	}
}

// RecordCreated publishes a freshly persisted record
func (r *Registry) RecordCreated(record models.LogRecord) {
	r.Publish(record)
}

// Close disconnects and removes every listener
func (r *Registry) Close() {
	r.mu.Lock()
	listeners := r.listeners
	r.listeners = make(map[Handle]Listener)
	r.mu.Unlock()

	for handle, listener := range listeners {
		if err := listener.Close(); err != nil {
			r.logger.Debug("failed to close listener", zap.String("handle", string(handle)), zap.Error(err))
		}
	}

	r.reportListeners(0)
}

func (r *Registry) snapshot() []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]subscription, 0, len(r.listeners))
	for handle, listener := range r.listeners {
		subs = append(subs, subscription{handle: handle, listener: listener})
	}
	return subs
}

func (r *Registry) deliveryFailed(err *DeliveryError) {
	if r.metrics != nil {
		r.metrics.IncrementDeliveryFailures()
	}

	r.failureLog.Do(func() {
		r.logger.Warn("broadcast delivery failed",
			zap.String("handle", string(err.Handle)),
			zap.Error(err.Err))
	})
}

func (r *Registry) reportListeners(count int) {
	if r.metrics != nil {
		r.metrics.SetListeners(count)
	}
}
