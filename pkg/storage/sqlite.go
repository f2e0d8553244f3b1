package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kerlexov/logcollector/pkg/models"
	_ "github.com/mattn/go-sqlite3"
)

const recordColumns = `id, level, message, details, timestamp, app_version, platform, stake_username, created_at, updated_at`

// SQLiteStorage implements RecordStore using SQLite
type SQLiteStorage struct {
	// db is nil once the store is closed
	db  atomic.Pointer[sql.DB]
	now func() time.Time
}

// NewSQLiteStorage creates a new SQLite storage instance.
// LIKE is made case-sensitive on every connection to match PostgreSQL and the search index.
func NewSQLiteStorage(connectionString string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", withCaseSensitiveLike(connectionString))
	if err != nil {
		return nil, err
	}

	// Every pooled connection to an in-memory database would see its own empty database
	if isInMemory(connectionString) {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	storage := &SQLiteStorage{now: time.Now}
	storage.db.Store(db)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

func isInMemory(connectionString string) bool {
	return connectionString == ":memory:" ||
		strings.Contains(connectionString, "mode=memory") ||
		strings.HasPrefix(connectionString, "file::memory:")
}

func withCaseSensitiveLike(connectionString string) string {
	if connectionString == "" || strings.Contains(connectionString, "_cslike") ||
		strings.Contains(connectionString, "_case_sensitive_like") {
		return connectionString
	}
	if strings.Contains(connectionString, "?") {
		return connectionString + "&_cslike=1"
	}
	return connectionString + "?_cslike=1"
}

// migrateSQLite runs database migrations
func migrateSQLite(db *sql.DB) error {
	createMigrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
			CREATE TABLE IF NOT EXISTS logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				level TEXT NOT NULL,
				message TEXT NOT NULL,
				details TEXT, -- JSON
				timestamp DATETIME NOT NULL,
				app_version TEXT,
				platform TEXT,
				stake_username TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
			CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
			CREATE INDEX IF NOT EXISTS idx_logs_stake_username ON logs(stake_username);
			`,
		},
	}

	for _, migration := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", migration.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration version %d: %w", migration.version, err)
		}

		if count == 0 {
			if _, err := db.Exec(migration.sql); err != nil {
				return fmt.Errorf("failed to apply migration version %d: %w", migration.version, err)
			}

			if _, err := db.Exec("INSERT INTO migrations (version) VALUES (?)", migration.version); err != nil {
				return fmt.Errorf("failed to record migration version %d: %w", migration.version, err)
			}
		}
	}

	return nil
}

// Create inserts a single record and fills in its generated fields
func (s *SQLiteStorage) Create(ctx context.Context, record *models.LogRecord) error {
	db := s.db.Load()
	if db == nil {
		return ErrClosed
	}

	now := s.now().UTC()

	timestamp := record.Timestamp.UTC()
	if record.Timestamp.IsZero() {
		timestamp = now
	}

	var details *string
	if len(record.Details) > 0 {
		detailsStr := string(record.Details)
		details = &detailsStr
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO logs (
			level, message, details, timestamp, app_version, platform, stake_username,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Level,
		record.Message,
		details,
		timestamp,
		record.AppVersion,
		record.Platform,
		record.StakeUsername,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generated id: %w", err)
	}

	record.ID = id
	record.Timestamp = timestamp
	record.CreatedAt = now
	record.UpdatedAt = now

	return nil
}

// List retrieves records based on filter criteria
func (s *SQLiteStorage) List(ctx context.Context, filter models.Filter, page models.Page) ([]models.LogRecord, error) {
	db := s.db.Load()
	if db == nil {
		return nil, ErrClosed
	}

	limit, offset := normalizePage(page)
	if limit == 0 {
		return []models.LogRecord{}, nil
	}

	whereClause, args := buildWhereClause(filter, func(int) string { return "?" })

	query := fmt.Sprintf(`
		SELECT %s
		FROM logs %s
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, recordColumns, whereClause)

	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	return scanSQLiteRecords(rows)
}

// GetByIDs retrieves specific records by their IDs
func (s *SQLiteStorage) GetByIDs(ctx context.Context, ids []int64) ([]models.LogRecord, error) {
	db := s.db.Load()
	if db == nil {
		return nil, ErrClosed
	}

	if len(ids) == 0 {
		return []models.LogRecord{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM logs
		WHERE id IN (%s)
		ORDER BY timestamp DESC, id DESC
	`, recordColumns, strings.Join(placeholders, ","))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs by IDs: %w", err)
	}
	defer rows.Close()

	return scanSQLiteRecords(rows)
}

func scanSQLiteRecords(rows *sql.Rows) ([]models.LogRecord, error) {
	logs := make([]models.LogRecord, 0)
	for rows.Next() {
		var record models.LogRecord
		var details sql.NullString

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

		if details.Valid {
			record.Details = json.RawMessage(details.String)
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

// Truncate removes every record and resets the AUTOINCREMENT sequence in one transaction
func (s *SQLiteStorage) Truncate(ctx context.Context) error {
	db := s.db.Load()
	if db == nil {
		return ErrClosed
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM logs"); err != nil {
		return fmt.Errorf("failed to delete log records: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'logs'"); err != nil {
		return fmt.Errorf("failed to reset id sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Count returns the number of stored records
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	db := s.db.Load()
	if db == nil {
		return 0, ErrClosed
	}

	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

// HealthCheck returns the health status of the storage system
func (s *SQLiteStorage) HealthCheck(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Details: map[string]string{
			"type": "sqlite",
		},
	}

	db := s.db.Load()
	if db == nil {
		status.Status = "unhealthy"
		status.Details["database"] = ErrClosed.Error()
		return status
	}

	if err := db.PingContext(ctx); err != nil {
		status.Status = "unhealthy"
		status.Details["database"] = fmt.Sprintf("ping failed: %v", err)
		return status
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		status.Status = "unhealthy"
		status.Details["query"] = fmt.Sprintf("count query failed: %v", err)
		return status
	}

	status.Details["database"] = "connected"
	status.Details["log_count"] = fmt.Sprintf("%d", count)

	return status
}

// Close closes the storage connection
func (s *SQLiteStorage) Close() error {
	db := s.db.Swap(nil)
	if db == nil {
		return nil
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
