package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSignedPair writes a throwaway certificate and key into dir
func writeSelfSignedPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600); err != nil {
		t.Fatalf("Failed to write certificate: %v", err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}

	return certFile, keyFile
}

func TestDefaultTLSConfig(t *testing.T) {
	config := DefaultTLSConfig()

	if config.Enabled {
		t.Error("TLS should be disabled by default")
	}

	if config.MinVersion != "TLS1.2" {
		t.Errorf("Expected min version TLS1.2, got %s", config.MinVersion)
	}

	if _, err := config.parseCipherSuites(); err != nil {
		t.Errorf("Default cipher suites should be supported: %v", err)
	}

	tlsConfig, err := config.ServerConfig()
	if err != nil || tlsConfig != nil {
		t.Errorf("Expected nil config for disabled TLS, got %v, %v", tlsConfig, err)
	}
}

func TestTLSConfig_ApplyEnv(t *testing.T) {
	t.Setenv("LOGCOLLECTOR_TLS_ENABLED", "true")
	t.Setenv("LOGCOLLECTOR_TLS_CERT_FILE", "/custom/cert.pem")
	t.Setenv("LOGCOLLECTOR_TLS_KEY_FILE", "/custom/key.pem")
	t.Setenv("LOGCOLLECTOR_TLS_MIN_VERSION", "TLS1.3")

	config := DefaultTLSConfig()
	config.ApplyEnv()

	if !config.Enabled {
		t.Error("TLS should be enabled")
	}
	if config.CertFile != "/custom/cert.pem" {
		t.Errorf("Expected cert file /custom/cert.pem, got %s", config.CertFile)
	}
	if config.KeyFile != "/custom/key.pem" {
		t.Errorf("Expected key file /custom/key.pem, got %s", config.KeyFile)
	}
	if config.MinVersion != "TLS1.3" {
		t.Errorf("Expected min version TLS1.3, got %s", config.MinVersion)
	}
}

func TestParseMinVersion(t *testing.T) {
	tests := []struct {
		version  string
		expected uint16
		wantErr  bool
	}{
		{"TLS1.2", tls.VersionTLS12, false},
		{"TLS1.3", tls.VersionTLS13, false},
		{"tls1.3", tls.VersionTLS13, false},
		{"TLS1.0", 0, true},
		{"SSL3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			config := &TLSConfig{MinVersion: tt.version}
			got, err := config.parseMinVersion()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestTLSConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSignedPair(t, dir)

	tests := []struct {
		name    string
		mutate  func(c *TLSConfig)
		wantErr bool
	}{
		{"valid", func(c *TLSConfig) {}, false},
		{"disabled skips checks", func(c *TLSConfig) { c.Enabled = false; c.CertFile = "" }, false},
		{"missing cert path", func(c *TLSConfig) { c.CertFile = "" }, true},
		{"missing cert file", func(c *TLSConfig) { c.CertFile = filepath.Join(dir, "nope.crt") }, true},
		{"bad version", func(c *TLSConfig) { c.MinVersion = "TLS9" }, true},
		{"bad cipher", func(c *TLSConfig) { c.CipherSuites = []string{"TLS_NULL"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultTLSConfig()
			config.Enabled = true
			config.CertFile = certFile
			config.KeyFile = keyFile
			tt.mutate(&config)

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTLSConfig_ServerConfig(t *testing.T) {
	certFile, keyFile := writeSelfSignedPair(t, t.TempDir())

	config := DefaultTLSConfig()
	config.Enabled = true
	config.CertFile = certFile
	config.KeyFile = keyFile
	config.MinVersion = "TLS1.3"

	tlsConfig, err := config.ServerConfig()
	if err != nil {
		t.Fatalf("Failed to build TLS config: %v", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("Expected 1 certificate, got %d", len(tlsConfig.Certificates))
	}
	if tlsConfig.MinVersion != tls.VersionTLS13 {
		t.Errorf("Expected TLS1.3 minimum, got %d", tlsConfig.MinVersion)
	}
	if len(tlsConfig.CipherSuites) != len(config.CipherSuites) {
		t.Errorf("Expected %d cipher suites, got %d", len(config.CipherSuites), len(tlsConfig.CipherSuites))
	}
}
