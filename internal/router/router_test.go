package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wisdom-campus/internal/auth0"
	"wisdom-campus/internal/config"
	"wisdom-campus/internal/database"
	"wisdom-campus/internal/models"
)

func setupAPI(t *testing.T) (*gin.Engine, *auth0.MockProvider, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.JWT.Secret = "router-test-secret"
	cfg.JWT.Issuer = "wisdom-campus-test"
	cfg.JWT.AccessExpireMin = 60
	cfg.JWT.RefreshExpireDays = 30
	cfg.App.PageSize = 20
	cfg.App.VerifyCooldownSeconds = 1
	cfg.App.StaleUnverifiedSecs = 60

	provider := auth0.NewMockProvider()
	return SetupRouter(cfg, db, provider), provider, db
}

type envelope struct {
	Success bool                   `json:"success"`
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestAPI_RegisterLoginFlow(t *testing.T) {
	r, provider, _ := setupAPI(t)

	// 注册
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"student_id": "20230101",
		"email":      "flow@example.edu",
		"password":   "password123",
		"name":       "流程测试",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, true, env.Data["email_sent"])

	// 未验证时登录被拒
	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "flow@example.edu", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	// 查询验证状态
	w, env = doJSON(t, r, http.MethodGet, "/api/v1/auth/check-verification?email=flow@example.edu", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, env.Data["email_verified"])

	// 模拟用户点击验证链接后登录
	provider.MarkVerified("flow@example.edu")
	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "flow@example.edu", "password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	access, ok := env.Data["token"].(string)
	require.True(t, ok)
	refresh, ok := env.Data["refresh_token"].(string)
	require.True(t, ok)

	// 带访问令牌取个人信息
	w, env = doJSON(t, r, http.MethodGet, "/api/v1/user/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flow@example.edu", env.Data["email"])
	assert.Equal(t, "20230101", env.Data["student_id"])

	// 刷新访问令牌
	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh-token", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, env.Data["token"])

	// 访问令牌不能当刷新令牌用
	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh-token", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	r, _, _ := setupAPI(t)

	// 学号登录走本地查询，用户不存在
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"student_id": "99999999", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, 20002, env.Code)
	assert.NotEmpty(t, env.Message)

	// 未登录访问受保护接口
	w, env = doJSON(t, r, http.MethodGet, "/api/v1/user/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestAPI_StudentIDCheck(t *testing.T) {
	r, _, _ := setupAPI(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/user/check?student_id=20230102", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, env.Data["exists"])

	_, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"student_id": "20230102",
		"email":      "check@example.edu",
		"password":   "password123",
		"name":       "查学号",
	}, "")

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/user/check?student_id=20230102", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.Data["exists"])

	// 格式不对直接 400
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/user/check?student_id=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_AdminGuard(t *testing.T) {
	r, provider, db := setupAPI(t)

	_, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "plain@example.edu", "password": "password123", "name": "普通用户",
	}, "")
	provider.MarkVerified("plain@example.edu")

	_, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "plain@example.edu", "password": "password123",
	}, "")
	access := env.Data["token"].(string)

	// 普通用户访问管理接口
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/admin/users", nil, access)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	// 提权后可以访问
	require.NoError(t, db.Model(&models.User{}).
		Where("email = ?", "plain@example.edu").
		Update("is_admin", true).Error)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/admin/users", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), env.Data["total"])
}

func TestAPI_PasswordFlow(t *testing.T) {
	r, provider, _ := setupAPI(t)

	_, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "pw@example.edu", "password": "password123", "name": "密码流程",
	}, "")
	provider.MarkVerified("pw@example.edu")

	// 忘记密码：已注册和未注册的邮箱提示一致
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/forgot-password", gin.H{
		"email": "pw@example.edu",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	knownMsg := env.Message

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/forgot-password", gin.H{
		"email": "stranger@example.edu",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, knownMsg, env.Message)
	assert.Equal(t, 1, provider.ResetCount())

	// 修改密码要求登录态
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/change-password", gin.H{
		"old_password": "password123", "new_password": "newpassword456",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "pw@example.edu", "password": "password123",
	}, "")
	access := env.Data["token"].(string)

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/change-password", gin.H{
		"old_password": "password123", "new_password": "newpassword456",
	}, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	// 新密码生效
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "pw@example.edu", "password": "newpassword456",
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_NotesCRUD(t *testing.T) {
	r, provider, _ := setupAPI(t)

	_, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "note@example.edu", "password": "password123", "name": "记笔记",
	}, "")
	provider.MarkVerified("note@example.edu")
	_, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email": "note@example.edu", "password": "password123",
	}, "")
	access := env.Data["token"].(string)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/notes", gin.H{
		"title": "第一篇", "content": "正文", "category": "数学",
	}, access)
	require.Equal(t, http.StatusOK, w.Code)
	note := env.Data["note"].(map[string]interface{})
	noteID := int(note["id"].(float64))

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/notes", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), env.Data["total"])

	w, _ = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/notes/%d", noteID), gin.H{
		"title": "改过的", "content": "新正文", "is_starred": true,
	}, access)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/notes/%d", noteID), nil, access)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/notes", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), env.Data["total"])
}
