package client

import (
	"net/url"
	"time"
)

// Config configures a Client
type Config struct {
	ServerURL           string        `json:"server_url" yaml:"server_url"`
	HTTPTimeout         time.Duration `json:"http_timeout" yaml:"http_timeout"`
	UserAgent           string        `json:"user_agent" yaml:"user_agent"`
	RetryConfig         RetryConfig   `json:"retry_config" yaml:"retry_config"`
	BreakerMaxFailures  int           `json:"breaker_max_failures" yaml:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `json:"breaker_reset_timeout" yaml:"breaker_reset_timeout"`
}

// RetryConfig controls exponential backoff for idempotent requests
type RetryConfig struct {
	MaxRetries          int           `json:"max_retries" yaml:"max_retries"`
	InitialInterval     time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval         time.Duration `json:"max_interval" yaml:"max_interval"`
	MaxElapsedTime      time.Duration `json:"max_elapsed_time" yaml:"max_elapsed_time"`
	Multiplier          float64       `json:"multiplier" yaml:"multiplier"`
	RandomizationFactor float64       `json:"randomization_factor" yaml:"randomization_factor"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:           "http://localhost:3000",
		HTTPTimeout:         10 * time.Second,
		UserAgent:           "logcollector-go-client/1.0",
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 60 * time.Second,
		RetryConfig: RetryConfig{
			MaxRetries:          3,
			InitialInterval:     500 * time.Millisecond,
			MaxInterval:         10 * time.Second,
			MaxElapsedTime:      time.Minute,
			Multiplier:          2.0,
			RandomizationFactor: 0.1,
		},
	}
}

// Validate checks required fields and fills zero values with defaults
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrInvalidConfig("server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidConfig("server_url must be an absolute http or https URL")
	}

	defaults := DefaultConfig()
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaults.HTTPTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.BreakerMaxFailures <= 0 {
		c.BreakerMaxFailures = defaults.BreakerMaxFailures
	}
	if c.BreakerResetTimeout <= 0 {
		c.BreakerResetTimeout = defaults.BreakerResetTimeout
	}
	if c.RetryConfig.MaxRetries < 0 {
		c.RetryConfig.MaxRetries = 0
	}
	if c.RetryConfig.InitialInterval <= 0 {
		c.RetryConfig.InitialInterval = defaults.RetryConfig.InitialInterval
	}
	if c.RetryConfig.MaxInterval <= 0 {
		c.RetryConfig.MaxInterval = defaults.RetryConfig.MaxInterval
	}
	if c.RetryConfig.MaxElapsedTime <= 0 {
		c.RetryConfig.MaxElapsedTime = defaults.RetryConfig.MaxElapsedTime
	}
	if c.RetryConfig.Multiplier <= 1 {
		c.RetryConfig.Multiplier = defaults.RetryConfig.Multiplier
	}
	return nil
}
