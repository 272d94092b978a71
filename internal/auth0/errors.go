package auth0

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderUnavailable 网络错误或 Auth0 5xx，调用方可以提示稍后重试。
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrConflict 身份已存在（创建时 409）。
	ErrConflict = errors.New("identity already exists")
	// ErrNotFound 指定身份不存在。
	ErrNotFound = errors.New("identity not found")
)

// AuthErrorKind 凭证交换失败的枚举分类。
// 系统其余部分只看这个枚举，不看 Auth0 的原始错误文案。
type AuthErrorKind int

const (
	AuthUnknown AuthErrorKind = iota
	AuthWrongCredentials
	AuthEmailNotVerified
	AuthGrantNotEnabled
)

// AuthError 凭证交换被提供方拒绝。Description 保留原始文案，只用于日志。
type AuthError struct {
	Kind        AuthErrorKind
	Description string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rejected (kind=%d): %s", e.Kind, e.Description)
}

// classifyAuthError 把 Auth0 的 error_description 归类成枚举。
// 已知的短语集合很小，其余一律 AuthUnknown。
func classifyAuthError(description string) *AuthError {
	kind := AuthUnknown
	switch {
	case strings.Contains(description, "Wrong email or password"):
		kind = AuthWrongCredentials
	case strings.Contains(description, "verify your email"):
		kind = AuthEmailNotVerified
	case strings.Contains(description, "unauthorized_client"):
		kind = AuthGrantNotEnabled
	}
	return &AuthError{Kind: kind, Description: description}
}
