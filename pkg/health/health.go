package health

import (
	"context"
	"errors"
	"time"

	"github.com/kerlexov/logcollector/pkg/models"
	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Component reports its own health; the record store and search index implement it
type Component interface {
	HealthCheck(ctx context.Context) models.HealthStatus
}

// ListenerCounter reports how many real-time listeners are connected
type ListenerCounter interface {
	Count() int
}

// Options configures a Checker
type Options struct {
	Search       Component
	Listeners    ListenerCounter
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	Logger       *zap.Logger
}

// Report is the body of the health endpoint
type Report struct {
	Status         string               `json:"status"`
	Timestamp      time.Time            `json:"timestamp"`
	Uptime         string               `json:"uptime"`
	Storage        models.HealthStatus  `json:"storage"`
	Search         *models.HealthStatus `json:"search,omitempty"`
	Listeners      int                  `json:"listeners"`
	CircuitBreaker BreakerStats         `json:"circuit_breaker"`
}

// Available reports whether the service can take traffic
func (r Report) Available() bool {
	return r.Status != StatusUnhealthy
}

// Checker aggregates the health of the store, the optional search index and
// the listener registry. Store probes go through a circuit breaker so a dead
// database is not hammered by health polling.
type Checker struct {
	store     Component
	search    Component
	listeners ListenerCounter
	breaker   *CircuitBreaker
	timeout   time.Duration
	startedAt time.Time
	logger    *zap.Logger
}

// NewChecker creates a Checker for store
func NewChecker(store Component, opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		store:     store,
		search:    opts.Search,
		listeners: opts.Listeners,
		breaker:   NewCircuitBreaker(opts.MaxFailures, opts.ResetTimeout),
		timeout:   opts.Timeout,
		startedAt: time.Now(),
		logger:    logger.Named("health"),
	}
}

// Check probes every component and combines the results
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	now := time.Now().UTC()
	report := Report{
		Status:    StatusHealthy,
		Timestamp: now,
		Uptime:    time.Since(c.startedAt).Round(time.Second).String(),
	}

	err := c.breaker.Execute(func() error {
		report.Storage = c.store.HealthCheck(ctx)
		if report.Storage.Status != StatusHealthy {
			return errors.New("storage unhealthy")
		}
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		report.Storage = models.HealthStatus{
			Status:    StatusUnhealthy,
			Timestamp: now,
			Details:   map[string]string{"error": err.Error()},
		}
	}
	if err != nil {
		c.logger.Warn("storage health check failed", zap.Error(err))
		report.Status = StatusUnhealthy
	}

	if c.search != nil {
		searchStatus := c.search.HealthCheck(ctx)
		report.Search = &searchStatus
		if searchStatus.Status != StatusHealthy && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	if c.listeners != nil {
		report.Listeners = c.listeners.Count()
	}
	report.CircuitBreaker = c.breaker.Stats()

	return report
}

// Breaker exposes the storage circuit breaker
func (c *Checker) Breaker() *CircuitBreaker {
	return c.breaker
}
