package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
)

const HeaderTenant = "X-Tenant-ID"

// TenantRequired resolves the tenant from the X-Tenant-ID header and injects
// it into the request context. Auth proper happens upstream at the gateway;
// this service only scopes data access.
func (s *Server) TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderTenant))
		if raw == "" {
			AbortWithError(c, ErrTenantRequired)
			return
		}

		tenantID, err := snowflake.ParseString(raw)
		if err != nil || tenantID == 0 {
			AbortWithError(c, ErrTenantRequired)
			return
		}

		ctx := tenantctx.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
