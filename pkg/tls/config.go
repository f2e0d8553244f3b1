package tls

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
)

// TLSConfig represents TLS configuration for the HTTP listener
type TLSConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	CertFile     string   `yaml:"cert_file" json:"cert_file"`
	KeyFile      string   `yaml:"key_file" json:"key_file"`
	MinVersion   string   `yaml:"min_version" json:"min_version"`
	CipherSuites []string `yaml:"cipher_suites" json:"cipher_suites"`
}

var supportedVersions = map[string]uint16{
	"TLS1.2": tls.VersionTLS12,
	"TLS1.3": tls.VersionTLS13,
}

// DefaultTLSConfig returns default TLS configuration.
// TLS is off by default; deployments usually terminate it at a proxy.
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{
		Enabled:    false,
		CertFile:   "./certs/server.crt",
		KeyFile:    "./certs/server.key",
		MinVersion: "TLS1.2",
		CipherSuites: []string{
			"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
			"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
			"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
			"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
			"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
			"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
		},
	}
}

// ApplyEnv overrides fields from LOGCOLLECTOR_TLS_* environment variables
func (c *TLSConfig) ApplyEnv() {
	if enabled := os.Getenv("LOGCOLLECTOR_TLS_ENABLED"); enabled != "" {
		c.Enabled = enabled == "true" || enabled == "1"
	}

	if certFile := os.Getenv("LOGCOLLECTOR_TLS_CERT_FILE"); certFile != "" {
		c.CertFile = certFile
	}

	if keyFile := os.Getenv("LOGCOLLECTOR_TLS_KEY_FILE"); keyFile != "" {
		c.KeyFile = keyFile
	}

	if minVersion := os.Getenv("LOGCOLLECTOR_TLS_MIN_VERSION"); minVersion != "" {
		c.MinVersion = minVersion
	}
}

// ServerConfig builds the crypto/tls configuration for http.Server.
// It returns nil when TLS is disabled.
func (c *TLSConfig) ServerConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	minVersion, _ := c.parseMinVersion()
	cipherSuites, _ := c.parseCipherSuites()

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		CipherSuites: cipherSuites,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}, nil
}

func (c *TLSConfig) parseMinVersion() (uint16, error) {
	version, ok := supportedVersions[strings.ToUpper(c.MinVersion)]
	if !ok {
		return 0, fmt.Errorf("unsupported TLS version: %s", c.MinVersion)
	}
	return version, nil
}

// parseCipherSuites resolves names against the secure suites known to crypto/tls
func (c *TLSConfig) parseCipherSuites() ([]uint16, error) {
	known := make(map[string]uint16)
	for _, suite := range tls.CipherSuites() {
		known[suite.Name] = suite.ID
	}

	suites := make([]uint16, 0, len(c.CipherSuites))
	for _, name := range c.CipherSuites {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unsupported cipher suite: %s", name)
		}
		suites = append(suites, id)
	}

	return suites, nil
}

// Validate validates the TLS configuration
func (c *TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.CertFile == "" {
		return fmt.Errorf("certificate file path is required when TLS is enabled")
	}

	if c.KeyFile == "" {
		return fmt.Errorf("key file path is required when TLS is enabled")
	}

	if _, err := os.Stat(c.CertFile); err != nil {
		return fmt.Errorf("certificate file not readable: %w", err)
	}

	if _, err := os.Stat(c.KeyFile); err != nil {
		return fmt.Errorf("key file not readable: %w", err)
	}

	if _, err := c.parseMinVersion(); err != nil {
		return err
	}

	if _, err := c.parseCipherSuites(); err != nil {
		return err
	}

	return nil
}
