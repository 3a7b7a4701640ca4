package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxTenantIDLength bounds tenant IDs, which are embedded in cache keys
const maxTenantIDLength = 64

// TenantMiddleware resolves the tenant whose catalogue the request reads.
// A tenant set by the auth middleware wins over the X-Tenant-ID header;
// X-Vendor-ID is still accepted from older gateways.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenant_id")
		if tenantID == "" {
			tenantID = strings.TrimSpace(c.GetHeader("X-Tenant-ID"))
		}
		if tenantID == "" {
			tenantID = strings.TrimSpace(c.GetHeader("X-Vendor-ID"))
		}

		switch {
		case tenantID == "":
			abortTenant(c, http.StatusUnauthorized, "TENANT_REQUIRED", "Catalogue requests must carry an X-Tenant-ID header")
			return
		case !validTenantID(tenantID):
			abortTenant(c, http.StatusBadRequest, "INVALID_TENANT", "Tenant ID may only contain letters, digits, '-' and '_'")
			return
		}

		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

// validTenantID keeps tenant IDs free of characters that act as cache key
// separators or glob patterns
func validTenantID(id string) bool {
	if len(id) > maxTenantIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func abortTenant(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// GetTenantID returns the tenant resolved by TenantMiddleware
func GetTenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}
