package middleware

import (
	"errors"
	"net/http"
	"strings"

	"wisdom-campus/internal/models"
	"wisdom-campus/internal/store"
	"wisdom-campus/internal/token"
	"wisdom-campus/internal/util"

	"github.com/gin-gonic/gin"
)

// CurrentUserKey context 里当前用户的键名。
const CurrentUserKey = "currentUser"

// AuthMiddleware 校验访问令牌，并在 context 里放入当前用户。
func AuthMiddleware(issuer *token.Issuer, users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		// 1) Header: Authorization: Bearer xxx
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = parts[1]
			}
		}

		// 2) URL 查询参数 ?token=xxx（用于导出下载等无法自定义 Header 的场景）
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		// 3) Cookie wc_token
		if tokenStr == "" {
			if cookie, err := c.Cookie("wc_token"); err == nil {
				tokenStr = cookie
			}
		}

		if tokenStr == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "未登录")
			c.Abort()
			return
		}

		claims, err := issuer.Validate(tokenStr, token.UseAccess)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpired):
				util.Error(c, http.StatusUnauthorized, util.CodeTokenExpired, "登录已过期，请重新登录")
			default:
				util.Error(c, http.StatusUnauthorized, util.CodeTokenInvalid, "登录状态无效，请重新登录")
			}
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			util.Error(c, http.StatusUnauthorized, util.CodeTokenInvalid, "登录状态无效，请重新登录")
			c.Abort()
			return
		}

		user, err := users.FindByID(userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				util.Error(c, http.StatusUnauthorized, util.CodeUserNotFound, "用户不存在")
			} else {
				util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询用户失败")
			}
			c.Abort()
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// RequireAdmin 管理接口守卫，必须挂在 AuthMiddleware 之后。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			util.Error(c, http.StatusForbidden, util.CodeForbidden, "无权访问该资源")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser 从 context 里取出 AuthMiddleware 放入的用户，没有则返回 nil。
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CurrentUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
