package client

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/logcollector/pkg/broadcast"
	"github.com/kerlexov/logcollector/pkg/config"
	"github.com/kerlexov/logcollector/pkg/health"
	"github.com/kerlexov/logcollector/pkg/ingestion"
	"github.com/kerlexov/logcollector/pkg/logservice"
	"github.com/kerlexov/logcollector/pkg/storage"
)

// backend is a complete log collector served from an httptest server
type backend struct {
	server   *httptest.Server
	registry *broadcast.Registry
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	registry := broadcast.NewRegistry(broadcast.Options{})
	transport, err := broadcast.NewServer(registry, broadcast.ServerOptions{})
	if err != nil {
		t.Fatalf("Failed to create broadcast server: %v", err)
	}

	service := logservice.New(store, logservice.Options{
		Observers: []logservice.RecordObserver{registry},
	})

	srv, err := ingestion.NewServer(config.DefaultConfig(), ingestion.Dependencies{
		Service:   service,
		Broadcast: transport,
		Health:    health.NewChecker(store, health.Options{Listeners: registry}),
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		transport.Close()
		httpServer.Close()
		store.Close()
	})

	return &backend{server: httpServer, registry: registry}
}

func (b *backend) waitForListeners(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for b.registry.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d listeners, got %d", n, b.registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testConfig(serverURL string) Config {
	config := DefaultConfig()
	config.ServerURL = serverURL
	config.RetryConfig.InitialInterval = time.Millisecond
	config.RetryConfig.MaxInterval = 5 * time.Millisecond
	config.RetryConfig.RandomizationFactor = 0
	return config
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	c, err := New(testConfig(serverURL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}
