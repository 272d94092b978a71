package auth0

import "context"

// IdentityRecord Auth0 侧的用户记录。
type IdentityRecord struct {
	UserID        string                 `json:"user_id"`
	Email         string                 `json:"email"`
	EmailVerified bool                   `json:"email_verified"`
	Name          string                 `json:"name"`
	Picture       string                 `json:"picture"`
	UserMetadata  map[string]interface{} `json:"user_metadata"`
}

// StudentID 从 user_metadata 里取学号，没有则返回空串。
func (r *IdentityRecord) StudentID() string {
	if r.UserMetadata == nil {
		return ""
	}
	if v, ok := r.UserMetadata["student_id"].(string); ok {
		return v
	}
	return ""
}

// ProviderSession 凭证交换成功后 Auth0 返回的令牌。
type ProviderSession struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserInfo /userinfo 端点的返回。
type UserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Metadata 注册时写进 Auth0 user_metadata 的附加字段。
type Metadata struct {
	StudentID string
	Name      string
	MajorID   *uint
	Grade     string
}

// Provider 对外部身份提供方的全部出站调用。
// 真实实现走 Auth0 HTTP API，mock 实现存内存，两者返回同一套类型化错误。
type Provider interface {
	// ExchangeCredentials 资源所有者密码式交换。被拒绝时返回 *AuthError，
	// 网络失败返回 ErrProviderUnavailable。
	ExchangeCredentials(ctx context.Context, email, password string) (*ProviderSession, error)
	// UserInfo 用访问令牌换取用户信息。
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
	// FindByEmail 按邮箱查身份，未找到返回 (nil, nil)。
	FindByEmail(ctx context.Context, email string) (*IdentityRecord, error)
	// GetUser 按 Auth0 ID 查身份，未找到返回 ErrNotFound。
	GetUser(ctx context.Context, auth0ID string) (*IdentityRecord, error)
	// CreateUser 创建身份，邮箱已存在返回 ErrConflict。
	CreateUser(ctx context.Context, email, password string, meta Metadata) (*IdentityRecord, error)
	// UpdateUserMetadata 更新 user_metadata。
	UpdateUserMetadata(ctx context.Context, auth0ID string, meta Metadata) error
	// DeleteUser 删除身份（注册补偿、注销账号用）。
	DeleteUser(ctx context.Context, auth0ID string) error
	// SendVerificationEmail 触发验证邮件任务。
	SendVerificationEmail(ctx context.Context, auth0ID string) error
	// SendPasswordReset 触发密码重置邮件。邮箱不存在时同样返回成功。
	SendPasswordReset(ctx context.Context, email string) error
	// SetPassword 直接设置新密码（旧密码校验由调用方完成）。
	SetPassword(ctx context.Context, auth0ID, newPassword string) error
}
