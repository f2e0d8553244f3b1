package storage

import (
	"context"
	"errors"

	"github.com/kerlexov/logcollector/pkg/models"
)

// ErrClosed is returned by stores used after Close
var ErrClosed = errors.New("storage: store is closed")

// RecordStore defines the interface for log record persistence
type RecordStore interface {
	// Create inserts a record, assigning its ID and bookkeeping timestamps.
	// A zero Timestamp is replaced with the store's ingestion time.
	Create(ctx context.Context, record *models.LogRecord) error

	// List returns records matching filter, newest first, sliced by page
	List(ctx context.Context, filter models.Filter, page models.Page) ([]models.LogRecord, error)

	// GetByIDs retrieves specific records, newest first
	GetByIDs(ctx context.Context, ids []int64) ([]models.LogRecord, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)

	// Truncate removes every record and resets the ID sequence
	Truncate(ctx context.Context) error

	// HealthCheck returns the health status of the storage system
	HealthCheck(ctx context.Context) models.HealthStatus

	// Close closes the storage connection
	Close() error
}

// New opens the store selected by storeType
func New(ctx context.Context, storeType, connectionString string, maxConnections int) (RecordStore, error) {
	switch storeType {
	case "", "sqlite":
		return NewSQLiteStorage(connectionString)
	case "postgres":
		return NewPostgresStorage(ctx, connectionString, maxConnections)
	default:
		return nil, errors.New("storage: unsupported store type " + storeType)
	}
}
