package handler

import (
	"net/http"
	"strings"

	"wisdom-campus/internal/middleware"
	"wisdom-campus/internal/service"
	"wisdom-campus/internal/token"
	"wisdom-campus/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责登录注册和验证相关接口
type AuthHandler struct {
	Svc    *service.AuthService
	Tokens *token.Issuer
}

func NewAuthHandler(svc *service.AuthService, tokens *token.Issuer) *AuthHandler {
	return &AuthHandler{Svc: svc, Tokens: tokens}
}

// ---------- 请求结构 ----------

type loginReq struct {
	Email     string `json:"email"`
	StudentID string `json:"student_id"`
	Password  string `json:"password" binding:"required"`
}

type registerReq struct {
	StudentID string `json:"student_id"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Name      string `json:"name" binding:"required"`
	MajorID   *uint  `json:"major_id"`
	Grade     string `json:"grade"`
}

type emailOrAuth0Req struct {
	Email   string `json:"email"`
	Auth0ID string `json:"auth0_id"`
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	res, err := h.Svc.Login(c.Request.Context(), service.LoginRequest{
		Email:     req.Email,
		StudentID: req.StudentID,
		Password:  req.Password,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}

	util.OKMsg(c, "登录成功", util.Response{
		"token":         res.Token,
		"refresh_token": res.RefreshToken,
		"expires_in":    res.ExpiresIn,
		"user":          res.User.PublicMap(),
	})
}

// Register POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	res, err := h.Svc.Register(c.Request.Context(), service.RegisterRequest{
		StudentID: req.StudentID,
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		MajorID:   req.MajorID,
		Grade:     req.Grade,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}

	util.OKMsg(c, res.Message, util.Response{
		"user_id":    res.UserID,
		"auth0_id":   res.Auth0ID,
		"email":      res.Email,
		"email_sent": res.EmailSent,
	})
}

// VerifyToken GET /api/v1/auth/verify-token（挂在鉴权中间件之后）
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "未登录")
		return
	}
	util.OK(c, util.Response{"valid": true, "user": user.PublicMap()})
}

// RefreshToken POST /api/v1/auth/refresh-token
// 请求头携带 Bearer 刷新令牌，换取新的访问令牌。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	tokenStr := bearerToken(c)
	if tokenStr == "" {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "缺少刷新令牌")
		return
	}

	claims, err := h.Tokens.Validate(tokenStr, token.UseRefresh)
	if err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeTokenInvalid, "刷新令牌无效或已过期，请重新登录")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeTokenInvalid, "刷新令牌无效或已过期，请重新登录")
		return
	}

	access, expiresIn, err := h.Svc.RefreshAccess(userID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.OK(c, util.Response{"token": access, "expires_in": expiresIn})
}

// Logout POST /api/v1/auth/logout
// 服务端不维护令牌黑名单，登出由客户端丢弃令牌完成，这里只提供统一入口。
func (h *AuthHandler) Logout(c *gin.Context) {
	util.OKMsg(c, "已退出登录", nil)
}

// SendVerification POST /api/v1/auth/send-verification（挂在鉴权中间件之后）
func (h *AuthHandler) SendVerification(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "未登录")
		return
	}

	msg, err := h.Svc.ResendVerification(c.Request.Context(), user.Email, user.Auth0ID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.OKMsg(c, msg, nil)
}

// ResendVerification POST /api/v1/auth/resend-verification
// 登录页的"重新发送"按钮，不要求登录态。
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req emailOrAuth0Req
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	msg, err := h.Svc.ResendVerification(c.Request.Context(), req.Email, req.Auth0ID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.OKMsg(c, msg, nil)
}

// CheckVerification GET /api/v1/auth/check-verification?email=|auth0_id=
func (h *AuthHandler) CheckVerification(c *gin.Context) {
	verified, err := h.Svc.CheckVerification(c.Request.Context(), c.Query("email"), c.Query("auth0_id"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	// is_verified 是历史客户端用的别名，两个字段一起下发
	util.OK(c, util.Response{"email_verified": verified, "is_verified": verified})
}

// CancelRegistration DELETE /api/v1/auth/cancel-registration
// 注册到一半放弃时清理远端身份和本地记录。
func (h *AuthHandler) CancelRegistration(c *gin.Context) {
	var req emailOrAuth0Req
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	if err := h.Svc.CancelRegistration(c.Request.Context(), req.Email, req.Auth0ID); err != nil {
		util.Fail(c, err)
		return
	}
	util.OKMsg(c, "注册已取消", nil)
}

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required"`
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ForgotPassword POST /api/v1/auth/forgot-password
// 无论邮箱是否注册都返回同样的提示。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	msg, err := h.Svc.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.OKMsg(c, msg, nil)
}

// ChangePassword POST /api/v1/auth/change-password（挂在鉴权中间件之后）
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "未登录")
		return
	}

	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	if err := h.Svc.ChangePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		util.Fail(c, err)
		return
	}
	util.OKMsg(c, "密码修改成功", nil)
}

// bearerToken 从 Authorization 头里取出 Bearer 令牌。
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
