package auth0

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// mockIdentity 内存里的一条身份记录。
type mockIdentity struct {
	record       IdentityRecord
	passwordHash []byte
}

// MockProvider 内存版身份提供方，配置 auth0.mock=true 时启用。
// 行为和真实客户端保持一致：同样的类型化错误、同样的验证状态语义。
type MockProvider struct {
	mu     sync.Mutex
	users  map[string]*mockIdentity // key: email
	sent   []string                 // 已触发验证邮件的 auth0_id，按顺序
	resets []string                 // 已触发密码重置邮件的邮箱，按顺序
}

// NewMockProvider 构造函数。
func NewMockProvider() *MockProvider {
	return &MockProvider{users: make(map[string]*mockIdentity)}
}

func (m *MockProvider) ExchangeCredentials(_ context.Context, email, password string) (*ProviderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.users[email]
	if !ok {
		return nil, &AuthError{Kind: AuthWrongCredentials, Description: "Wrong email or password."}
	}
	if err := bcrypt.CompareHashAndPassword(id.passwordHash, []byte(password)); err != nil {
		return nil, &AuthError{Kind: AuthWrongCredentials, Description: "Wrong email or password."}
	}
	if !id.record.EmailVerified {
		return nil, &AuthError{Kind: AuthEmailNotVerified, Description: "Please verify your email before logging in."}
	}
	return &ProviderSession{
		AccessToken: "mock-access-" + id.record.UserID,
		IDToken:     "mock-id-" + id.record.UserID,
		ExpiresIn:   86400,
	}, nil
}

func (m *MockProvider) UserInfo(_ context.Context, accessToken string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.users {
		if "mock-access-"+id.record.UserID == accessToken {
			return &UserInfo{
				Sub:           id.record.UserID,
				Email:         id.record.Email,
				EmailVerified: id.record.EmailVerified,
				Name:          id.record.Name,
				Picture:       id.record.Picture,
			}, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockProvider) FindByEmail(_ context.Context, email string) (*IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	rec := id.record
	return &rec, nil
}

func (m *MockProvider) GetUser(_ context.Context, auth0ID string) (*IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.users {
		if id.record.UserID == auth0ID {
			rec := id.record
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockProvider) CreateUser(_ context.Context, email, password string, meta Metadata) (*IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[email]; ok {
		return nil, ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	rec := IdentityRecord{
		UserID:        "auth0|" + uuid.NewString(),
		Email:         email,
		EmailVerified: false,
		Name:          meta.Name,
		UserMetadata:  metadataMap(meta),
	}
	m.users[email] = &mockIdentity{record: rec, passwordHash: hash}
	out := rec
	return &out, nil
}

func (m *MockProvider) UpdateUserMetadata(_ context.Context, auth0ID string, meta Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.users {
		if id.record.UserID == auth0ID {
			id.record.UserMetadata = metadataMap(meta)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockProvider) DeleteUser(_ context.Context, auth0ID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for email, id := range m.users {
		if id.record.UserID == auth0ID {
			delete(m.users, email)
			return nil
		}
	}
	return nil
}

func (m *MockProvider) SendVerificationEmail(_ context.Context, auth0ID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, auth0ID)
	return nil
}

func (m *MockProvider) SendPasswordReset(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 和真实端点一致：邮箱不存在也返回成功
	m.resets = append(m.resets, email)
	return nil
}

func (m *MockProvider) SetPassword(_ context.Context, auth0ID, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.users {
		if id.record.UserID == auth0ID {
			hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			id.passwordHash = hash
			return nil
		}
	}
	return ErrNotFound
}

// MarkVerified 把指定邮箱标记为已验证，模拟用户点击了验证链接。
func (m *MockProvider) MarkVerified(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.users[email]; ok {
		id.record.EmailVerified = true
	}
}

// SentCount 返回已触发的验证邮件数量（测试用）。
func (m *MockProvider) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ResetCount 返回已触发的密码重置邮件数量（测试用）。
func (m *MockProvider) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resets)
}
