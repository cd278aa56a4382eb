package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/guardpost/internal/model"
)

// DefaultTokenExpiry はトークン有効期間のデフォルト値（7日）。
// 有効期間文字列が解釈できない場合もこの値にフォールバックする。
// 単位解釈の暗黙フォールバックはバグの温床になりやすいため、
// フォールバック発生時は起動時に警告ログを出す（NewTokenIssuerの呼び出し側が担う）。
const DefaultTokenExpiry = 7 * 24 * time.Hour

// TokenClaims はBearerトークンのペイロードを表す。
// ロールは発行時点のスナップショットであり、メンバーシップ変更後も
// 再発行されるまで古いまま保持される（意図的な非対称性）。
type TokenClaims struct {
	UserID string   `json:"uid"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer は自己完結型Bearerトークンの発行と検証を行う。
// HMAC-SHA256によるサーバーシークレット署名を使用する。
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue はユーザーIDとロールスナップショットを含む署名付きトークンを発行する。
func (t *TokenIssuer) Issue(userID string, roles []model.Role) (string, error) {
	now := time.Now()

	roleNames := make([]string, len(roles))
	for i, r := range roles {
		roleNames[i] = string(r)
	}

	claims := TokenClaims{
		UserID: userID,
		Roles:  roleNames,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、ペイロードを返す。
// 失敗は2種類に区別される:
//   - TOKEN_EXPIRED: 署名は有効だが有効期限切れ（再認証フローへ誘導）
//   - TOKEN_INVALID: 署名不正・形式不正などそれ以外すべて（セキュリティログ対象）
func (t *TokenIssuer) Verify(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewTokenExpiredError()
		}
		return nil, model.NewTokenInvalidError()
	}
	return claims, nil
}

// ParseExpiry は "7d"、"24h"、"30m" 形式の有効期間文字列を解釈する。
// 解釈できない場合はDefaultTokenExpiryとfalseを返す。
// 呼び出し側はフォールバック発生を警告ログに残すこと。
func ParseExpiry(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return DefaultTokenExpiry, false
	}

	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return DefaultTokenExpiry, false
	}

	switch s[len(s)-1] {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, true
	case 'h':
		return time.Duration(value) * time.Hour, true
	case 'm':
		return time.Duration(value) * time.Minute, true
	default:
		return DefaultTokenExpiry, false
	}
}
