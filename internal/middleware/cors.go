package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig lists the browser origins allowed to call the API. Empty
// Headers and a zero MaxAge take the defaults below.
type CORSConfig struct {
	Origins []string
	Headers []string
	MaxAge  time.Duration
}

const defaultCORSMaxAge = 24 * time.Hour

var (
	// Last-Event-ID is sent by EventSource when it reconnects.
	defaultCORSHeaders = []string{"Authorization", "Content-Type", "Last-Event-ID"}
	corsMethods        = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ",")
	// Export downloads name their file in Content-Disposition; rate limited
	// auth calls carry Retry-After.
	corsExposedHeaders = "Content-Disposition,Retry-After"
)

// CORS answers preflight requests itself and marks allowed origins on
// every other response.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	headers := cfg.Headers
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	allowHeaders := strings.Join(headers, ",")
	maxAgeSeconds := strconv.Itoa(int(maxAge / time.Second))

	anyOrigin := false
	origins := make(map[string]bool, len(cfg.Origins))
	for _, origin := range cfg.Origins {
		origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
		if origin == "*" {
			anyOrigin = true
		}
		origins[origin] = true
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if origin := c.GetHeader("Origin"); origin != "" {
			switch {
			case anyOrigin:
				header.Set("Access-Control-Allow-Origin", "*")
			case origins[origin]:
				header.Set("Access-Control-Allow-Origin", origin)
				header.Add("Vary", "Origin")
			}
		}

		if c.Request.Method != http.MethodOptions {
			header.Set("Access-Control-Expose-Headers", corsExposedHeaders)
			c.Next()
			return
		}

		header.Set("Access-Control-Allow-Methods", corsMethods)
		header.Set("Access-Control-Allow-Headers", allowHeaders)
		header.Set("Access-Control-Max-Age", maxAgeSeconds)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
