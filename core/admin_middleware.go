package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminUsernameContextKey = "admin_username"

// AdminOnly validates an opaque operator token (issued by POST /admin/login)
// against Redis. This guards the locally-hosted problem-archive import path,
// which is independent of the Keycloak-issued bearer tokens end users present
// elsewhere on this API.
func AdminOnly(redis RedisClientRaw) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Token "
		if !strings.HasPrefix(header, prefix) {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing admin token")
			c.Abort()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
		username, err := ValidateAdminToken(c.Request.Context(), redis, token)
		if err != nil {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "admin session invalid or expired")
			c.Abort()
			return
		}
		c.Set(adminUsernameContextKey, username)
		c.Next()
	}
}
