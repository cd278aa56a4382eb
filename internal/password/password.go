// Package password はパスワードのハッシュ化と検証を提供する。
// bcryptによる遅いソルト付きハッシュを使用し、平文は一切保存・ログ出力しない。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinCost は許容する最小のbcryptコストファクター。
	MinCost = 10
	// MaxCost は許容する最大のbcryptコストファクター。
	MaxCost = 14
	// DefaultCost はデフォルトのbcryptコストファクター。
	DefaultCost = 12

	// StrongLengthThreshold は強固なパスワードと見なす最小文字数。
	// この長さ未満のパスワードでログインしたユーザーには
	// password_requires_upgradeフラグが立てられる（ログイン自体は阻害しない）。
	StrongLengthThreshold = 12
)

// Hasher はパスワードのハッシュ化と検証を行う。
type Hasher struct {
	cost int
}

// NewHasher は指定コストのHasherを生成する。
// コストが許容範囲外の場合はDefaultCostに丸める。
func NewHasher(cost int) *Hasher {
	if cost < MinCost || cost > MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash は平文パスワードをbcryptでハッシュ化する。
func (h *Hasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードと保存済みハッシュを照合する。
// 比較はbcrypt自身の定数時間比較に委譲する。
// 一致しない場合はfalseを返す（エラーにはしない）。
func (h *Hasher) Verify(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// RequiresUpgrade は提示されたパスワードが強固さのしきい値未満かを判定する。
func RequiresUpgrade(plain string) bool {
	return len(plain) < StrongLengthThreshold
}
