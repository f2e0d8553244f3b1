package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin access to the API
type CORSConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string      `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string      `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string      `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         time.Duration `yaml:"max_age" json:"max_age"`
}

// DefaultCORSConfig allows every origin, matching a public ingestion endpoint
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Authorization", "X-Request-ID"},
		MaxAge:         24 * time.Hour,
	}
}

func (c CORSConfig) allowOrigin(origin string) string {
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// CORSMiddleware answers preflight requests and decorates responses with CORS headers
func CORSMiddleware(config CORSConfig) gin.HandlerFunc {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(int(config.MaxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !config.Enabled || origin == "" {
			c.Next()
			return
		}

		allowed := config.allowOrigin(origin)
		if allowed == "" {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", allowed)
		if allowed != "*" {
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
