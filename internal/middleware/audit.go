package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ==================== 审计日志 ====================

// AuditLog 审计中间件：记录所有控制面写操作及其操作者
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet {
			return
		}

		username := GetUsername(c)
		if username == "" {
			username = "anonymous"
		}

		log.Printf("[Audit] %s %s %s -> %d",
			username, c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
