package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kerlexov/logcollector/pkg/models"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresStorage implements RecordStore on a PostgreSQL connection pool
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to PostgreSQL, runs pending migrations and returns the store
func NewPostgresStorage(ctx context.Context, connectionString string, maxConnections int) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if maxConnections > 0 {
		config.MaxConns = int32(maxConnections)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runPostgresMigrations(connectionString); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// runPostgresMigrations applies the embedded migrations through the pgx/v5 migrate driver
func runPostgresMigrations(connectionString string) error {
	source, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	databaseURL, err := migrateURL(connectionString)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migrateURL rewrites a postgres:// URL to the scheme registered by the pgx/v5 migrate driver
func migrateURL(connectionString string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connectionString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connectionString, prefix), nil
		}
	}
	if strings.HasPrefix(connectionString, "pgx5://") {
		return connectionString, nil
	}
	return "", fmt.Errorf("connection string must be a postgres:// URL to run migrations")
}

// Create inserts a single record; the database fills id, default timestamp and bookkeeping columns
func (s *PostgresStorage) Create(ctx context.Context, record *models.LogRecord) error {
	var timestamp *time.Time
	if !record.Timestamp.IsZero() {
		ts := record.Timestamp.UTC()
		timestamp = &ts
	}

	var details interface{}
	if len(record.Details) > 0 {
		details = string(record.Details)
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO logs (level, message, details, timestamp, app_version, platform, stake_username)
		VALUES ($1, $2, $3, COALESCE($4, NOW()), $5, $6, $7)
		RETURNING id, timestamp, created_at, updated_at
	`,
		record.Level,
		record.Message,
		details,
		timestamp,
		record.AppVersion,
		record.Platform,
		record.StakeUsername,
	).Scan(&record.ID, &record.Timestamp, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert log record: %w", err)
	}

	record.Timestamp = record.Timestamp.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()

	return nil
}

// List retrieves records based on filter criteria
func (s *PostgresStorage) List(ctx context.Context, filter models.Filter, page models.Page) ([]models.LogRecord, error) {
	limit, offset := normalizePage(page)
	if limit == 0 {
		return []models.LogRecord{}, nil
	}

	whereClause, args := buildWhereClause(filter, func(n int) string { return fmt.Sprintf("$%d", n) })

	query := fmt.Sprintf(`
		SELECT %s
		FROM logs %s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, recordColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	return scanPostgresRecords(rows)
}

// GetByIDs retrieves specific records by their IDs
func (s *PostgresStorage) GetByIDs(ctx context.Context, ids []int64) ([]models.LogRecord, error) {
	if len(ids) == 0 {
		return []models.LogRecord{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM logs
		WHERE id = ANY($1)
		ORDER BY timestamp DESC, id DESC
	`, recordColumns)

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs by IDs: %w", err)
	}
	defer rows.Close()

	return scanPostgresRecords(rows)
}

func scanPostgresRecords(rows pgx.Rows) ([]models.LogRecord, error) {
	logs := make([]models.LogRecord, 0)
	for rows.Next() {
		var record models.LogRecord
		var details []byte

		err := rows.Scan(
			&record.ID,
			&record.Level,
			&record.Message,
			&details,
			&record.Timestamp,
			&record.AppVersion,
			&record.Platform,
			&record.StakeUsername,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log record: %w", err)
		}

		if details != nil {
			record.Details = details
		}

		record.Timestamp = record.Timestamp.UTC()
		record.CreatedAt = record.CreatedAt.UTC()
		record.UpdatedAt = record.UpdatedAt.UTC()

		logs = append(logs, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return logs, nil
}

// Truncate empties the table and restarts the identity sequence atomically
func (s *PostgresStorage) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE logs RESTART IDENTITY"); err != nil {
		return fmt.Errorf("failed to truncate logs: %w", err)
	}
	return nil
}

// Count returns the number of stored records
func (s *PostgresStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

// HealthCheck returns the health status of the storage system
func (s *PostgresStorage) HealthCheck(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Details: map[string]string{
			"type": "postgres",
		},
	}

	if err := s.pool.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Details["database"] = fmt.Sprintf("ping failed: %v", err)
		return status
	}

	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		status.Status = "unhealthy"
		status.Details["query"] = fmt.Sprintf("count query failed: %v", err)
		return status
	}

	stat := s.pool.Stat()
	status.Details["database"] = "connected"
	status.Details["log_count"] = fmt.Sprintf("%d", count)
	status.Details["pool_total_conns"] = fmt.Sprintf("%d", stat.TotalConns())

	return status
}

// Close closes the connection pool
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
