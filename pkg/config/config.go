package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kerlexov/logcollector/pkg/security"
	tlsconfig "github.com/kerlexov/logcollector/pkg/tls"
	"gopkg.in/yaml.v3"
)

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=1s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"min=1024"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig contains storage-specific configuration
type StorageConfig struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite postgres"`
	ConnectionString string `yaml:"connection_string" validate:"required"`
	MaxConnections   int    `yaml:"max_connections" validate:"min=1,max=1000"`
}

// SearchConfig contains full-text search index configuration
type SearchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	IndexPath string `yaml:"index_path"`
}

// BroadcastConfig contains real-time listener configuration
type BroadcastConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxListeners int           `yaml:"max_listeners" validate:"min=1,max=100000"`
	SendBuffer   int           `yaml:"send_buffer" validate:"min=1,max=65536"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=100ms"`
	PingInterval time.Duration `yaml:"ping_interval" validate:"min=1s"`
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Storage   StorageConfig       `yaml:"storage"`
	Search    SearchConfig        `yaml:"search"`
	Broadcast BroadcastConfig     `yaml:"broadcast"`
	Logging   LoggingConfig       `yaml:"logging"`
	TLS       tlsconfig.TLSConfig `yaml:"tls"`
	Security  security.Config     `yaml:"security"`
}

// Validate validates the configuration using struct tags
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return err
	}

	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Storage: StorageConfig{
			Type:             "sqlite",
			ConnectionString: "./logs.db",
			MaxConnections:   10,
		},
		Search: SearchConfig{
			Enabled:   false,
			IndexPath: "",
		},
		Broadcast: BroadcastConfig{
			Enabled:      true,
			MaxListeners: 1000,
			SendBuffer:   256,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		TLS:      tlsconfig.DefaultTLSConfig(),
		Security: security.DefaultConfig(),
	}
}

// Load loads configuration from path (or a well-known location), then
// applies environment overrides and validates the result
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	configPath := path
	if configPath == "" {
		configPath = os.Getenv("LOGCOLLECTOR_CONFIG")
	}
	if configPath == "" {
		possiblePaths := []string{
			"./config.yaml",
			"./config.yml",
			"/etc/logcollector/config.yaml",
		}
		if home, err := os.UserHomeDir(); err == nil {
			possiblePaths = append(possiblePaths, filepath.Join(home, ".logcollector", "config.yaml"))
		}

		for _, candidate := range possiblePaths {
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
	}

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// loadFromEnv applies environment overrides. PORT and DATABASE_URL are
// honoured for platform deployments; LOGCOLLECTOR_* variables win over them.
func loadFromEnv(config *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := parsePort(port)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		config.Server.Port = p
	}

	if port := os.Getenv("LOGCOLLECTOR_PORT"); port != "" {
		p, err := parsePort(port)
		if err != nil {
			return fmt.Errorf("LOGCOLLECTOR_PORT: %w", err)
		}
		config.Server.Port = p
	}

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		config.Storage.Type = "postgres"
		config.Storage.ConnectionString = databaseURL
	}

	if dbType := os.Getenv("LOGCOLLECTOR_DB_TYPE"); dbType != "" {
		config.Storage.Type = dbType
	}

	if connStr := os.Getenv("LOGCOLLECTOR_DB_CONNECTION"); connStr != "" {
		config.Storage.ConnectionString = connStr
	}

	if level := os.Getenv("LOGCOLLECTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}

	if format := os.Getenv("LOGCOLLECTOR_LOG_FORMAT"); format != "" {
		config.Logging.Format = strings.ToLower(format)
	}

	if enabled := os.Getenv("LOGCOLLECTOR_SEARCH_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("LOGCOLLECTOR_SEARCH_ENABLED: %w", err)
		}
		config.Search.Enabled = b
	}

	if indexPath := os.Getenv("LOGCOLLECTOR_SEARCH_INDEX_PATH"); indexPath != "" {
		config.Search.IndexPath = indexPath
	}

	if maxListeners := os.Getenv("LOGCOLLECTOR_BROADCAST_MAX_LISTENERS"); maxListeners != "" {
		n, err := strconv.Atoi(maxListeners)
		if err != nil {
			return fmt.Errorf("LOGCOLLECTOR_BROADCAST_MAX_LISTENERS: %w", err)
		}
		config.Broadcast.MaxListeners = n
	}

	config.TLS.ApplyEnv()

	return nil
}

// parsePort parses a port string to int with validation
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port must be between 1 and 65535")
	}
	return port, nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
