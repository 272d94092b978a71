package token

import (
	"errors"
	"testing"
	"time"

	"wisdom-campus/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:            42,
		Email:         "a@x.edu",
		Name:          "A",
		EmailVerified: true,
	}
}

// TestIssueAndValidate_RoundTrip 签发后应能解析回同样的身份
func TestIssueAndValidate_RoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", "wisdom-campus", time.Hour, 24*time.Hour)

	tok, err := iss.IssueAccess(testUser())
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}

	claims, err := iss.Validate(tok, UseAccess)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	// 身份声明必须是字符串形式，无论来源是整数主键
	if claims.Subject != "42" {
		t.Errorf("subject = %q, want \"42\"", claims.Subject)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID error: %v", err)
	}
	if id != 42 {
		t.Errorf("user id = %d, want 42", id)
	}
	if claims.Email != "a@x.edu" || !claims.EmailVerified {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

// TestValidate_Expired 过期令牌必须返回 ErrExpired 而不是 ErrMalformed
func TestValidate_Expired(t *testing.T) {
	iss := NewIssuer("test-secret", "wisdom-campus", -time.Second, 24*time.Hour)
	// NewIssuer 会把非法 ttl 归到默认值，这里直接用内部方法造过期令牌
	iss.accessTTL = -time.Second

	tok, err := iss.issue(testUser(), UseAccess, -time.Second)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	_, err = iss.Validate(tok, UseAccess)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

// TestValidate_Malformed 错误签名和乱码必须返回 ErrMalformed
func TestValidate_Malformed(t *testing.T) {
	iss := NewIssuer("right-secret", "wisdom-campus", time.Hour, 24*time.Hour)
	other := NewIssuer("wrong-secret", "wisdom-campus", time.Hour, 24*time.Hour)

	tok, err := other.IssueAccess(testUser())
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}

	if _, err := iss.Validate(tok, UseAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("wrong secret: err = %v, want ErrMalformed", err)
	}
	if _, err := iss.Validate("not-a-jwt", UseAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("garbage: err = %v, want ErrMalformed", err)
	}
}

// TestValidate_WrongUse 刷新令牌不能当访问令牌用
func TestValidate_WrongUse(t *testing.T) {
	iss := NewIssuer("test-secret", "wisdom-campus", time.Hour, 24*time.Hour)

	refresh, err := iss.IssueRefresh(testUser())
	if err != nil {
		t.Fatalf("IssueRefresh error: %v", err)
	}

	if _, err := iss.Validate(refresh, UseAccess); !errors.Is(err, ErrWrongUse) {
		t.Fatalf("err = %v, want ErrWrongUse", err)
	}
	if _, err := iss.Validate(refresh, UseRefresh); err != nil {
		t.Fatalf("refresh as refresh: err = %v, want nil", err)
	}
}
