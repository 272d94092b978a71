package middleware

import (
	"wisdom-campus/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditMiddleware 记录已登录用户的操作日志，必须挂在 AuthMiddleware 之后。
func AuditMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// 只记录登录用户的操作
		user := CurrentUser(c)
		if user == nil {
			return
		}

		entry := models.AuditLog{
			UserID:    &user.ID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		// 日志写失败不影响请求本身
		_ = db.Create(&entry).Error
	}
}
