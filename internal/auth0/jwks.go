package auth0

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// jwks /.well-known/jwks.json 的返回结构，只取 RS256 验签需要的字段。
type jwks struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// FetchJWKS 拉取提供方的公钥集。
func (c *Client) FetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks failed: status %d", resp.StatusCode)
	}

	var ks jwks
	if err := json.Unmarshal(body, &ks); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(ks.Keys))
	for _, k := range ks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("parse jwk %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// ValidateProviderToken 验证 Auth0 签发的 ID Token（RS256 + kid 匹配）。
// 只用于直接校验提供方令牌，本地会话令牌走 token.Issuer。
func (c *Client) ValidateProviderToken(ctx context.Context, tokenStr string) (*UserInfo, error) {
	keys, err := c.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		pub, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("no matching key for kid %q", kid)
		}
		return pub, nil
	},
		jwt.WithAudience(c.cfg.ClientID),
		jwt.WithIssuer(c.base+"/"),
	)
	if err != nil {
		return nil, fmt.Errorf("validate provider token: %w", err)
	}

	ui := &UserInfo{}
	ui.Sub, _ = claims["sub"].(string)
	ui.Email, _ = claims["email"].(string)
	ui.Name, _ = claims["name"].(string)
	ui.Picture, _ = claims["picture"].(string)
	ui.EmailVerified, _ = claims["email_verified"].(bool)
	return ui, nil
}

func rsaKeyFromJWK(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
