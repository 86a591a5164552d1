package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware validates Origin/Referer against the configured allow-list
// and sets the standard CORS response headers. Bearer tokens carry their own
// credential, so unlike the cookie-session model this needs no CSRF pairing.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}
