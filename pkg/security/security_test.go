package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, config Config) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	if err := Apply(router, config); err != nil {
		t.Fatalf("Failed to apply security middleware: %v", err)
	}
	router.GET("/api/logs", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.POST("/api/logs", func(c *gin.Context) { c.String(http.StatusCreated, "ok") })

	return router
}

func TestHeadersMiddleware(t *testing.T) {
	router := newTestRouter(t, DefaultConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("Expected nosniff, got %q", w.Header().Get("X-Content-Type-Options"))
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("Expected DENY, got %q", w.Header().Get("X-Frame-Options"))
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
}

func TestHeadersMiddleware_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.Headers.Enabled = false
	router := newTestRouter(t, config)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs", nil))

	if w.Header().Get("X-Frame-Options") != "" {
		t.Error("Expected no security headers when disabled")
	}
}

func TestCORSMiddleware(t *testing.T) {
	restricted := DefaultConfig()
	restricted.CORS.AllowedOrigins = []string{"https://dashboard.example.com"}

	tests := []struct {
		name           string
		config         Config
		method         string
		origin         string
		preflight      bool
		expectedStatus int
		expectedOrigin string
	}{
		{"wildcard simple request", DefaultConfig(), http.MethodPost, "https://app.example.com", false, http.StatusCreated, "*"},
		{"wildcard preflight", DefaultConfig(), http.MethodOptions, "https://app.example.com", true, http.StatusNoContent, "*"},
		{"no origin header", DefaultConfig(), http.MethodGet, "", false, http.StatusOK, ""},
		{"listed origin", restricted, http.MethodGet, "https://dashboard.example.com", false, http.StatusOK, "https://dashboard.example.com"},
		{"unlisted origin", restricted, http.MethodGet, "https://evil.example.com", false, http.StatusOK, ""},
		{"unlisted preflight", restricted, http.MethodOptions, "https://evil.example.com", true, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.config)

			req := httptest.NewRequest(tt.method, "/api/logs", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedOrigin {
				t.Errorf("Expected allow-origin %q, got %q", tt.expectedOrigin, got)
			}
			if tt.preflight && tt.expectedStatus == http.StatusNoContent && w.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("Expected allow-methods on preflight response")
			}
		})
	}
}
