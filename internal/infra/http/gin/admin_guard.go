package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"carhire/internal/infra/security"
)

const adminKeyHeader = "X-Admin-Key"

type AdminGuard struct {
	Key    security.AdminKey
	Logger *slog.Logger
}

func (g AdminGuard) Handle(c *gin.Context) {
	if err := g.Key.Verify(c.GetHeader(adminKeyHeader)); err != nil {
		if g.Logger != nil {
			g.Logger.Warn("admin key rejected", "path", c.FullPath(), "client_ip", c.ClientIP())
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin key required"})
		return
	}
	c.Next()
}

func denyAll(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin access disabled"})
}
