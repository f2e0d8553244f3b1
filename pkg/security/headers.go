package security

import (
	"github.com/gin-gonic/gin"
)

// HeadersConfig represents security response headers configuration
type HeadersConfig struct {
	Enabled                 bool   `yaml:"enabled" json:"enabled"`
	ContentTypeOptions      string `yaml:"content_type_options" json:"content_type_options"`
	FrameOptions            string `yaml:"frame_options" json:"frame_options"`
	StrictTransportSecurity string `yaml:"strict_transport_security" json:"strict_transport_security"`
	ReferrerPolicy          string `yaml:"referrer_policy" json:"referrer_policy"`
}

// DefaultHeadersConfig returns default security headers configuration
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		Enabled:                 true,
		ContentTypeOptions:      "nosniff",
		FrameOptions:            "DENY",
		StrictTransportSecurity: "max-age=31536000; includeSubDomains",
		ReferrerPolicy:          "no-referrer",
	}
}

// HeadersMiddleware creates a Gin middleware for security headers
func HeadersMiddleware(config HeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.Enabled {
			c.Next()
			return
		}

		if config.ContentTypeOptions != "" {
			c.Header("X-Content-Type-Options", config.ContentTypeOptions)
		}

		if config.FrameOptions != "" {
			c.Header("X-Frame-Options", config.FrameOptions)
		}

		// Only meaningful over HTTPS
		if config.StrictTransportSecurity != "" && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", config.StrictTransportSecurity)
		}

		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}

		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// Config represents overall security configuration
type Config struct {
	Headers        HeadersConfig `yaml:"headers" json:"headers"`
	CORS           CORSConfig    `yaml:"cors" json:"cors"`
	TrustedProxies []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
}

// DefaultConfig returns default security configuration
func DefaultConfig() Config {
	return Config{
		Headers:        DefaultHeadersConfig(),
		CORS:           DefaultCORSConfig(),
		TrustedProxies: nil,
	}
}

// Apply installs the CORS and security header middleware on a Gin engine
func Apply(router *gin.Engine, config Config) error {
	if err := router.SetTrustedProxies(config.TrustedProxies); err != nil {
		return err
	}

	router.Use(CORSMiddleware(config.CORS))
	router.Use(HeadersMiddleware(config.Headers))

	return nil
}
