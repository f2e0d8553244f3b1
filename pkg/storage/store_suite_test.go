package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kerlexov/logcollector/pkg/models"
)

// runRecordStoreSuite exercises the RecordStore contract against a fresh, empty store
func runRecordStoreSuite(t *testing.T, newStore func(t *testing.T) RecordStore) {
	t.Run("CreateAssignsGeneratedFields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		record := &models.LogRecord{
			Level:   "info",
			Message: "server started",
		}

		before := time.Now().Add(-time.Second)
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}

		if record.ID <= 0 {
			t.Errorf("Expected positive ID, got %d", record.ID)
		}
		if record.Timestamp.Before(before) {
			t.Errorf("Expected ingestion timestamp, got %v", record.Timestamp)
		}
		if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
			t.Error("Expected bookkeeping timestamps to be set")
		}
		if record.Timestamp.Location() != time.UTC {
			t.Errorf("Expected UTC timestamp, got %v", record.Timestamp.Location())
		}
	})

	t.Run("Count", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if err := store.Create(ctx, &models.LogRecord{Level: "info", Message: "counted"}); err != nil {
				t.Fatalf("Failed to create record: %v", err)
			}
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count records: %v", err)
		}
		if count != 3 {
			t.Errorf("Expected 3 records, got %d", count)
		}

		if err := store.Truncate(ctx); err != nil {
			t.Fatalf("Failed to truncate: %v", err)
		}
		count, err = store.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count records: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected 0 records after truncate, got %d", count)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
		record := &models.LogRecord{
			Level:         "error",
			Message:       "payment failed",
			Details:       json.RawMessage(`{"orderId":42}`),
			Timestamp:     ts,
			AppVersion:    models.StringPtr("1.2.3"),
			Platform:      models.StringPtr("ios"),
			StakeUsername: models.StringPtr("alice"),
		}
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}

		records, err := store.List(ctx, models.Filter{}, models.DefaultPage())
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}

		got := records[0]
		if got.ID != record.ID {
			t.Errorf("Expected ID %d, got %d", record.ID, got.ID)
		}
		if got.Level != "error" || got.Message != "payment failed" {
			t.Errorf("Unexpected level/message: %s/%s", got.Level, got.Message)
		}
		if !got.Timestamp.Equal(ts) {
			t.Errorf("Expected timestamp %v, got %v", ts, got.Timestamp)
		}
		if got.StakeUsername == nil || *got.StakeUsername != "alice" {
			t.Errorf("Expected stakeUsername alice, got %v", got.StakeUsername)
		}
		if got.AppVersion == nil || *got.AppVersion != "1.2.3" {
			t.Errorf("Expected appVersion 1.2.3, got %v", got.AppVersion)
		}

		var details map[string]int
		if err := json.Unmarshal(got.Details, &details); err != nil {
			t.Fatalf("Failed to decode details: %v", err)
		}
		if details["orderId"] != 42 {
			t.Errorf("Expected orderId 42, got %v", details)
		}
	})

	t.Run("AbsentOptionalFields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if err := store.Create(ctx, &models.LogRecord{Level: "debug", Message: "bare"}); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}

		records, err := store.List(ctx, models.Filter{}, models.DefaultPage())
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}

		got := records[0]
		if got.Details != nil {
			t.Errorf("Expected nil details, got %s", got.Details)
		}
		if got.AppVersion != nil || got.Platform != nil || got.StakeUsername != nil {
			t.Error("Expected optional fields to be nil")
		}
	})

	t.Run("FilterAndOrder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		seed := []models.LogRecord{
			{Level: "info", Message: "alice info", Timestamp: base, StakeUsername: models.StringPtr("alice")},
			{Level: "error", Message: "alice error", Timestamp: base.Add(time.Minute), StakeUsername: models.StringPtr("alice")},
			{Level: "error", Message: "bob error", Timestamp: base.Add(2 * time.Minute), StakeUsername: models.StringPtr("bob")},
			{Level: "warn", Message: "anonymous 100% warning", Timestamp: base.Add(3 * time.Minute)},
		}
		for i := range seed {
			if err := store.Create(ctx, &seed[i]); err != nil {
				t.Fatalf("Failed to create record %d: %v", i, err)
			}
		}

		tests := []struct {
			name     string
			filter   models.Filter
			expected []string
		}{
			{"all newest first", models.Filter{}, []string{"anonymous 100% warning", "bob error", "alice error", "alice info"}},
			{"by user", models.Filter{StakeUsername: "alice"}, []string{"alice error", "alice info"}},
			{"by level", models.Filter{Level: "error"}, []string{"bob error", "alice error"}},
			{"by user and level", models.Filter{StakeUsername: "alice", Level: "error"}, []string{"alice error"}},
			{"no match", models.Filter{StakeUsername: "carol"}, []string{}},
			{"message search", models.Filter{Search: "error"}, []string{"bob error", "alice error"}},
			{"search escapes wildcards", models.Filter{Search: "100%"}, []string{"anonymous 100% warning"}},
			{"search matches inside words", models.Filter{Search: "rro"}, []string{"bob error", "alice error"}},
			{"search is case sensitive", models.Filter{Search: "Error"}, []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				records, err := store.List(ctx, tt.filter, models.DefaultPage())
				if err != nil {
					t.Fatalf("Failed to list records: %v", err)
				}
				if records == nil {
					t.Fatal("Expected non-nil slice")
				}
				assertMessages(t, records, tt.expected)
			})
		}
	})

	t.Run("TimestampTieBrokenByID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		ts := time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)
		for _, msg := range []string{"first", "second", "third"} {
			if err := store.Create(ctx, &models.LogRecord{Level: "info", Message: msg, Timestamp: ts}); err != nil {
				t.Fatalf("Failed to create record: %v", err)
			}
		}

		records, err := store.List(ctx, models.Filter{}, models.DefaultPage())
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		assertMessages(t, records, []string{"third", "second", "first"})
	})

	t.Run("Pagination", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			record := &models.LogRecord{Level: "info", Message: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Second)}
			if err := store.Create(ctx, record); err != nil {
				t.Fatalf("Failed to create record: %v", err)
			}
		}

		tests := []struct {
			name     string
			page     models.Page
			expected []string
		}{
			{"first page", models.Page{Limit: 2, Offset: 0}, []string{"e", "d"}},
			{"second page", models.Page{Limit: 2, Offset: 2}, []string{"c", "b"}},
			{"tail", models.Page{Limit: 2, Offset: 4}, []string{"a"}},
			{"beyond end", models.Page{Limit: 2, Offset: 10}, []string{}},
			{"zero limit", models.Page{Limit: 0, Offset: 0}, []string{}},
			{"negative values use defaults", models.Page{Limit: -1, Offset: -5}, []string{"e", "d", "c", "b", "a"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				records, err := store.List(ctx, models.Filter{}, tt.page)
				if err != nil {
					t.Fatalf("Failed to list records: %v", err)
				}
				assertMessages(t, records, tt.expected)
			})
		}
	})

	t.Run("GetByIDs", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var ids []int64
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, msg := range []string{"one", "two", "three"} {
			record := &models.LogRecord{Level: "info", Message: msg, Timestamp: base.Add(time.Duration(i) * time.Minute)}
			if err := store.Create(ctx, record); err != nil {
				t.Fatalf("Failed to create record: %v", err)
			}
			ids = append(ids, record.ID)
		}

		records, err := store.GetByIDs(ctx, []int64{ids[0], ids[2]})
		if err != nil {
			t.Fatalf("Failed to get records: %v", err)
		}
		assertMessages(t, records, []string{"three", "one"})

		records, err = store.GetByIDs(ctx, nil)
		if err != nil {
			t.Fatalf("Failed to get records: %v", err)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("Expected empty non-nil slice, got %v", records)
		}
	})

	t.Run("TruncateResetsSequence", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if err := store.Create(ctx, &models.LogRecord{Level: "info", Message: "before purge"}); err != nil {
				t.Fatalf("Failed to create record: %v", err)
			}
		}

		if err := store.Truncate(ctx); err != nil {
			t.Fatalf("Failed to truncate: %v", err)
		}
		if err := store.Truncate(ctx); err != nil {
			t.Fatalf("Failed to truncate an empty store: %v", err)
		}

		records, err := store.List(ctx, models.Filter{}, models.DefaultPage())
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Expected empty store, got %d records", len(records))
		}

		record := &models.LogRecord{Level: "info", Message: "after purge"}
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}
		if record.ID != 1 {
			t.Errorf("Expected ID sequence to restart at 1, got %d", record.ID)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store := newStore(t)

		health := store.HealthCheck(context.Background())
		if health.Status != "healthy" {
			t.Errorf("Expected healthy status, got %s (%v)", health.Status, health.Details)
		}
		if health.Details["log_count"] != "0" {
			t.Errorf("Expected log_count 0, got %s", health.Details["log_count"])
		}
	})
}

func assertMessages(t *testing.T, records []models.LogRecord, expected []string) {
	t.Helper()

	if len(records) != len(expected) {
		got := make([]string, len(records))
		for i, r := range records {
			got[i] = r.Message
		}
		t.Fatalf("Expected %v, got %v", expected, got)
	}

	for i, msg := range expected {
		if records[i].Message != msg {
			t.Errorf("Record %d: expected message %q, got %q", i, msg, records[i].Message)
		}
	}
}
