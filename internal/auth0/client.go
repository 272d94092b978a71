package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"wisdom-campus/internal/config"
)

const (
	requestTimeout = 10 * time.Second
	// 密码连接名，和 Auth0 租户里的连接保持一致
	passwordConnection = "Username-Password-Authentication"
	// realm 式密码授权，比普通 password grant 多带 realm 参数
	passwordRealmGrant = "http://auth0.com/oauth/grant-type/password-realm"
	// 管理令牌提前 5 分钟视为过期，避免边界上用到失效令牌
	tokenSafetyMargin = 5 * time.Minute
)

// Client Auth0 HTTP API 客户端，实现 Provider 接口。
// 管理令牌在内部缓存，带安全余量，过期前不会重复请求。
type Client struct {
	cfg  config.Auth0Config
	base string
	hc   *http.Client

	mu          sync.Mutex
	mgmtToken   string
	mgmtExpires time.Time
}

// NewClient 构造函数，base URL 由 domain 拼出。
func NewClient(cfg config.Auth0Config) *Client {
	return NewClientWithBaseURL(cfg, "https://"+cfg.Domain)
}

// NewClientWithBaseURL 指定 base URL 的构造函数，测试时指向 httptest 服务。
func NewClientWithBaseURL(cfg config.Auth0Config, base string) *Client {
	return &Client{
		cfg:  cfg,
		base: base,
		hc:   &http.Client{Timeout: requestTimeout},
	}
}

type oauthTokenResp struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type oauthErrorResp struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// ExchangeCredentials 用邮箱+密码做 realm 式密码授权。
func (c *Client) ExchangeCredentials(ctx context.Context, email, password string) (*ProviderSession, error) {
	payload := map[string]interface{}{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    passwordRealmGrant,
		"username":      email,
		"password":      password,
		"realm":         passwordConnection,
		"scope":         "openid profile email",
		"audience":      c.cfg.Audience,
	}

	resp, body, err := c.postJSON(ctx, "/oauth/token", "", payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, ErrProviderUnavailable
		}
		var oe oauthErrorResp
		_ = json.Unmarshal(body, &oe)
		desc := oe.Description
		if desc == "" {
			desc = oe.Error
		}
		// 原始描述只进日志
		log.Printf("auth0: credential exchange rejected: %s", desc)
		return nil, classifyAuthError(desc)
	}

	var tr oauthTokenResp
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &ProviderSession{
		AccessToken: tr.AccessToken,
		IDToken:     tr.IDToken,
		ExpiresIn:   tr.ExpiresIn,
	}, nil
}

// UserInfo 用访问令牌获取 /userinfo。
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/userinfo", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, ErrProviderUnavailable
		}
		return nil, fmt.Errorf("userinfo failed: status %d", resp.StatusCode)
	}
	var ui UserInfo
	if err := json.Unmarshal(body, &ui); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &ui, nil
}

// managementToken 返回缓存的管理令牌，过期（含安全余量）才重新获取。
func (c *Client) managementToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mgmtToken != "" && time.Now().Before(c.mgmtExpires) {
		return c.mgmtToken, nil
	}

	payload := map[string]interface{}{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"audience":      c.base + "/api/v2/",
		"grant_type":    "client_credentials",
	}

	resp, body, err := c.postJSON(ctx, "/oauth/token", "", payload)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("auth0: management token request failed: status %d", resp.StatusCode)
		return "", ErrProviderUnavailable
	}

	var tr oauthTokenResp
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode management token: %w", err)
	}

	c.mgmtToken = tr.AccessToken
	c.mgmtExpires = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSafetyMargin)
	return c.mgmtToken, nil
}

// FindByEmail 管理 API 按邮箱搜索，未找到返回 (nil, nil)。
func (c *Client) FindByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return nil, err
	}

	path := "/api/v2/users-by-email?email=" + url.QueryEscape(email)
	resp, body, err := c.do(ctx, http.MethodGet, path, tok, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, ErrProviderUnavailable
		}
		return nil, fmt.Errorf("users-by-email failed: status %d", resp.StatusCode)
	}

	var records []IdentityRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode users-by-email: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// GetUser 按 Auth0 ID 查身份。
func (c *Client) GetUser(ctx context.Context, auth0ID string) (*IdentityRecord, error) {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, body, err := c.do(ctx, http.MethodGet, "/api/v2/users/"+url.PathEscape(auth0ID), tok, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, ErrProviderUnavailable
	default:
		return nil, fmt.Errorf("get user failed: status %d", resp.StatusCode)
	}

	var rec IdentityRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &rec, nil
}

// CreateUser 创建身份，邮箱已存在返回 ErrConflict。
func (c *Client) CreateUser(ctx context.Context, email, password string, meta Metadata) (*IdentityRecord, error) {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"email":          email,
		"password":       password,
		"connection":     passwordConnection,
		"email_verified": false,
		"name":           meta.Name,
		"user_metadata":  metadataMap(meta),
	}

	resp, body, err := c.postJSON(ctx, "/api/v2/users", tok, payload)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrConflict
	case resp.StatusCode >= 500:
		return nil, ErrProviderUnavailable
	default:
		log.Printf("auth0: create user failed: status %d, body %s", resp.StatusCode, truncate(body, 200))
		return nil, fmt.Errorf("create user failed: status %d", resp.StatusCode)
	}

	var rec IdentityRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode created user: %w", err)
	}
	return &rec, nil
}

// UpdateUserMetadata 更新 user_metadata。
func (c *Client) UpdateUserMetadata(ctx context.Context, auth0ID string, meta Metadata) error {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{"user_metadata": metadataMap(meta)}
	buf, _ := json.Marshal(payload)
	resp, _, err := c.do(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(auth0ID), tok, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return ErrProviderUnavailable
	default:
		return fmt.Errorf("update metadata failed: status %d", resp.StatusCode)
	}
}

// DeleteUser 删除身份。已不存在视为成功。
func (c *Client) DeleteUser(ctx context.Context, auth0ID string) error {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	resp, _, err := c.do(ctx, http.MethodDelete, "/api/v2/users/"+url.PathEscape(auth0ID), tok, nil)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 500:
		return ErrProviderUnavailable
	default:
		return fmt.Errorf("delete user failed: status %d", resp.StatusCode)
	}
}

// SendVerificationEmail 触发验证邮件任务，Auth0 返回 201 表示受理。
func (c *Client) SendVerificationEmail(ctx context.Context, auth0ID string) error {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"user_id":   auth0ID,
		"client_id": c.cfg.ClientID,
	}
	resp, body, err := c.postJSON(ctx, "/api/v2/jobs/verification-email", tok, payload)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		if resp.StatusCode >= 500 {
			return ErrProviderUnavailable
		}
		log.Printf("auth0: verification email job failed: status %d, body %s", resp.StatusCode, truncate(body, 200))
		return fmt.Errorf("verification email job failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendPasswordReset 触发密码重置邮件。dbconnections 端点不需要管理令牌，
// Auth0 对不存在的邮箱同样返回 200，不会泄露邮箱是否注册。
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	payload := map[string]interface{}{
		"client_id":  c.cfg.ClientID,
		"email":      email,
		"connection": passwordConnection,
	}
	resp, body, err := c.postJSON(ctx, "/dbconnections/change_password", "", payload)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return ErrProviderUnavailable
		}
		log.Printf("auth0: password reset email failed: status %d, body %s", resp.StatusCode, truncate(body, 200))
		return fmt.Errorf("password reset email failed: status %d", resp.StatusCode)
	}
	return nil
}

// SetPassword 管理 API 直接设置新密码。旧密码校验由调用方先做。
func (c *Client) SetPassword(ctx context.Context, auth0ID, newPassword string) error {
	tok, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"password":   newPassword,
		"connection": passwordConnection,
	}
	buf, _ := json.Marshal(payload)
	resp, body, err := c.do(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(auth0ID), tok, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return ErrProviderUnavailable
	default:
		log.Printf("auth0: set password failed: status %d, body %s", resp.StatusCode, truncate(body, 200))
		return fmt.Errorf("set password failed: status %d", resp.StatusCode)
	}
}

func metadataMap(meta Metadata) map[string]interface{} {
	m := map[string]interface{}{}
	if meta.StudentID != "" {
		m["student_id"] = meta.StudentID
	}
	if meta.Name != "" {
		m["name"] = meta.Name
	}
	if meta.MajorID != nil {
		m["major_id"] = *meta.MajorID
	}
	if meta.Grade != "" {
		m["grade"] = meta.Grade
	}
	return m
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, payload interface{}) (*http.Response, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bearer, bytes.NewReader(buf))
}

// do 发送请求并读完响应体。传输层错误统一归为 ErrProviderUnavailable。
func (c *Client) do(ctx context.Context, method, path, bearer string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Printf("auth0: request %s %s failed: %v", method, path, err)
		return nil, nil, ErrProviderUnavailable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, ErrProviderUnavailable
	}
	return resp, data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
