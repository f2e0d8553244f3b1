package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kerlexov/logcollector/pkg/models"
)

func newTestShipper(t *testing.T, c *Client, config ShipperConfig) *Shipper {
	t.Helper()

	if config.FlushInterval == 0 {
		// Flushes are driven by the test
		config.FlushInterval = time.Hour
	}
	s := NewShipper(c, config)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestShipper_FlushSubmitsInOrder(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b.server.URL)
	s := newTestShipper(t, c, ShipperConfig{AppVersion: "1.2.3", Platform: "go", StakeUsername: "alice"})

	s.Info("first")
	s.Warn("second", Field{Key: "attempt", Value: 2})
	s.WithFields(Field{Key: "component", Value: "billing"}).Error("third", Field{Key: "err", Value: errors.New("boom")})

	if s.Pending() != 3 {
		t.Fatalf("Expected 3 pending entries, got %d", s.Pending())
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Expected empty buffer after flush, got %d", s.Pending())
	}

	records, err := c.Query(context.Background(), QueryOptions{StakeUsername: "alice"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	third := records[0]
	if third.Message != "third" || third.Level != "error" {
		t.Errorf("Expected newest record to be the error, got %+v", third)
	}
	if third.AppVersion == nil || *third.AppVersion != "1.2.3" {
		t.Errorf("Expected app version, got %v", third.AppVersion)
	}

	var details map[string]interface{}
	if err := json.Unmarshal(third.Details, &details); err != nil {
		t.Fatalf("Invalid details %s: %v", third.Details, err)
	}
	if details["component"] != "billing" || details["err"] != "boom" {
		t.Errorf("Expected merged fields in details, got %v", details)
	}

	if records[2].Message != "first" || records[2].Details != nil {
		t.Errorf("Expected oldest record without details, got %+v", records[2])
	}
}

func TestShipper_CloseFlushesAndStopsLogging(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b.server.URL)
	s := NewShipper(c, ShipperConfig{FlushInterval: time.Hour})

	s.Info("before close")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	s.Info("after close")

	if err := s.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	records, _ := c.Query(context.Background(), QueryOptions{})
	if len(records) != 1 || records[0].Message != "before close" {
		t.Errorf("Expected only the entry logged before close, got %+v", records)
	}
}

func TestShipper_BackgroundFlush(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b.server.URL)
	s := newTestShipper(t, c, ShipperConfig{FlushInterval: 20 * time.Millisecond})

	s.Info("background")

	deadline := time.Now().Add(2 * time.Second)
	for {
		records, _ := c.Query(context.Background(), QueryOptions{})
		if len(records) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for background flush")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestShipper_DropsOldestWhenFull(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b.server.URL)
	s := newTestShipper(t, c, ShipperConfig{BufferSize: 2})

	s.Info("one")
	s.Info("two")
	s.Info("three")

	if s.Dropped() != 1 {
		t.Errorf("Expected 1 dropped entry, got %d", s.Dropped())
	}
	s.Flush(context.Background())

	records, _ := c.Query(context.Background(), QueryOptions{})
	if len(records) != 2 || records[0].Message != "three" || records[1].Message != "two" {
		t.Errorf("Expected the two newest entries, got %+v", records)
	}
}

func TestShipper_RequeuesOnServerFailure(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	var mu sync.Mutex
	var messages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}

		var submission models.Submission
		json.NewDecoder(r.Body).Decode(&submission)
		mu.Lock()
		messages = append(messages, submission.Message)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.LogRecord{ID: 1, Level: submission.Level, Message: submission.Message})
	}))
	defer server.Close()

	var reported atomic.Int32
	c := newTestClient(t, server.URL)
	s := newTestShipper(t, c, ShipperConfig{ErrorHandler: func(error) { reported.Add(1) }})

	s.Info("a")
	s.Info("b")

	if err := s.Flush(context.Background()); !IsRetryable(err) {
		t.Fatalf("Expected retryable error, got %v", err)
	}
	if s.Pending() != 2 {
		t.Errorf("Expected both entries requeued, got %d", s.Pending())
	}
	if reported.Load() != 1 {
		t.Errorf("Expected the failure to be reported once, got %d", reported.Load())
	}

	failing.Store(false)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(messages) != 2 || messages[0] != "a" || messages[1] != "b" {
		t.Errorf("Expected entries delivered in order, got %v", messages)
	}
}

func TestEncodeFields(t *testing.T) {
	data := encodeFields([]Field{
		{Key: "count", Value: 3},
		{Key: "fn", Value: func() {}},
	})

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid JSON %s: %v", data, err)
	}
	if decoded["count"] != float64(3) {
		t.Errorf("Expected count 3, got %v", decoded["count"])
	}
	if _, ok := decoded["fn"].(string); !ok {
		t.Errorf("Expected unmarshalable value to be stringified, got %v", decoded["fn"])
	}
}
