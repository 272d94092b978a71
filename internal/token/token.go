package token

import (
	"errors"
	"strconv"
	"time"

	"wisdom-campus/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// 令牌用途，刷新令牌不能当访问令牌用，反之亦然。
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

var (
	// ErrExpired 令牌签名正确但已过期，客户端可以尝试刷新。
	ErrExpired = errors.New("token expired")
	// ErrMalformed 令牌格式错误或签名不对，客户端必须重新登录。
	ErrMalformed = errors.New("token malformed")
	// ErrWrongUse 令牌用途不匹配（拿刷新令牌访问接口等）。
	ErrWrongUse = errors.New("token use mismatch")
)

// Claims 本地会话令牌负载。Subject 固定是本地用户 ID 的字符串形式，
// 整数/字符串的归一只发生在这一层。
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	IsAdmin       bool   `json:"is_admin"`
	TokenUse      string `json:"token_use"`
}

// UserID 把 Subject 解析回本地用户主键。
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	return uint(id), nil
}

// Issuer 签发和校验本地会话令牌（HS256）。
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer 构造函数。ttl 参数非法时退回默认值：访问令牌 1 小时，刷新令牌 30 天。
func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess 为用户签发访问令牌。
func (i *Issuer) IssueAccess(user *models.User) (string, error) {
	return i.issue(user, UseAccess, i.accessTTL)
}

// IssueRefresh 为用户签发刷新令牌。
func (i *Issuer) IssueRefresh(user *models.User) (string, error) {
	return i.issue(user, UseRefresh, i.refreshTTL)
}

// AccessTTL 返回访问令牌有效期（给响应里的 expires_in 用）。
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

func (i *Issuer) issue(user *models.User, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
		IsAdmin:       user.IsAdmin,
		TokenUse:      use,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Validate 校验令牌并返回 Claims。过期和无效分开返回，
// 调用方据此决定是静默刷新还是强制重新登录。
func (i *Issuer) Validate(tokenStr, wantUse string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrMalformed
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenUse != wantUse {
		return nil, ErrWrongUse
	}
	return claims, nil
}
