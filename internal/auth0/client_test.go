package auth0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"wisdom-campus/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCfg() config.Auth0Config {
	return config.Auth0Config{
		Domain:       "test.auth0.local",
		ClientID:     "cid",
		ClientSecret: "secret",
		Audience:     "https://api.test",
	}
}

// TestExchangeCredentials_Classification 提供方拒绝时必须归类成枚举，
// 不能把原始文案漏给调用方做控制流
func TestExchangeCredentials_Classification(t *testing.T) {
	cases := []struct {
		desc string
		want AuthErrorKind
	}{
		{"Wrong email or password.", AuthWrongCredentials},
		{"Please verify your email before logging in.", AuthEmailNotVerified},
		{"unauthorized_client: grant type not enabled", AuthGrantNotEnabled},
		{"something else entirely", AuthUnknown},
	}

	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": tc.desc,
			})
		}))

		c := NewClientWithBaseURL(testCfg(), ts.URL)
		_, err := c.ExchangeCredentials(context.Background(), "a@x.edu", "pw")
		ts.Close()

		require.Error(t, err, tc.desc)
		var ae *AuthError
		require.ErrorAs(t, err, &ae, tc.desc)
		assert.Equal(t, tc.want, ae.Kind, tc.desc)
	}
}

// TestExchangeCredentials_Success 成功路径返回会话令牌
func TestExchangeCredentials_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, passwordRealmGrant, body["grant_type"])
		assert.Equal(t, "a@x.edu", body["username"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at",
			"id_token":     "it",
			"expires_in":   86400,
		})
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	sess, err := c.ExchangeCredentials(context.Background(), "a@x.edu", "longpass1")
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Equal(t, 86400, sess.ExpiresIn)
}

// TestManagementToken_Cached 有效期内的管理令牌只请求一次
func TestManagementToken_Cached(t *testing.T) {
	var tokenCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			atomic.AddInt32(&tokenCalls, 1)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "mgmt",
				"expires_in":   86400,
			})
		case "/api/v2/users-by-email":
			assert.Equal(t, "Bearer mgmt", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode([]IdentityRecord{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := c.FindByEmail(ctx, "a@x.edu")
		require.NoError(t, err)
		assert.Nil(t, rec) // 空结果返回 nil, nil
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

// TestCreateUser_Conflict 409 归类为 ErrConflict
func TestCreateUser_Conflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "mgmt", "expires_in": 86400})
			return
		}
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "The user already exists."})
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	_, err := c.CreateUser(context.Background(), "a@x.edu", "longpass1", Metadata{Name: "A"})
	require.ErrorIs(t, err, ErrConflict)
}

// TestSendVerificationEmail 任务端点要求 201
func TestSendVerificationEmail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "mgmt", "expires_in": 86400})
			return
		}
		require.Equal(t, "/api/v2/jobs/verification-email", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "auth0|abc", body["user_id"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	require.NoError(t, c.SendVerificationEmail(context.Background(), "auth0|abc"))
}

// TestSendPasswordReset dbconnections 端点不带管理令牌，载荷带 connection
func TestSendPasswordReset(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dbconnections/change_password", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cid", body["client_id"])
		assert.Equal(t, "a@x.edu", body["email"])
		assert.Equal(t, "Username-Password-Authentication", body["connection"])
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	require.NoError(t, c.SendPasswordReset(context.Background(), "a@x.edu"))
}

// TestSetPassword 管理 API PATCH 用户，身份不存在返回 ErrNotFound
func TestSetPassword(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "mgmt", "expires_in": 86400})
			return
		}
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/v2/users/auth0%7Cabc", r.URL.EscapedPath())
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "newlongpass1", body["password"])
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "auth0|abc"})
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	require.NoError(t, c.SetPassword(context.Background(), "auth0|abc", "newlongpass1"))
}

func TestSetPassword_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "mgmt", "expires_in": 86400})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	require.ErrorIs(t, c.SetPassword(context.Background(), "auth0|gone", "newlongpass1"), ErrNotFound)
}

// TestTransportFailure 网络失败统一归为 ErrProviderUnavailable
func TestTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // 立即关掉，让请求必然失败

	c := NewClientWithBaseURL(testCfg(), ts.URL)
	_, err := c.ExchangeCredentials(context.Background(), "a@x.edu", "pw")
	require.ErrorIs(t, err, ErrProviderUnavailable)
}
