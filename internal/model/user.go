// Package model はドメインモデルを定義する。
package model

import "time"

// UserStatus はユーザーの有効状態を表す。
type UserStatus string

const (
	// UserStatusActive は有効なユーザー状態。
	UserStatusActive UserStatus = "active"
	// UserStatusDisabled は無効化されたユーザー状態。
	UserStatusDisabled UserStatus = "disabled"
)

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
// リポジトリの読み取りで明示的にオプトインした場合のみ保持される。
type User struct {
	ID                      string
	Email                   string
	PasswordHash            string
	Name                    string
	Status                  UserStatus
	LastLoginAt             *time.Time
	PasswordRequiresUpgrade bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// IsActive はユーザーが有効かどうかを返す。
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Session はユーザーのログインセッションを表す。
// 高速ストア（Redis）と永続ストア（PostgreSQL）の両方に有効なエントリが
// 存在する場合のみ有効と判定される。
type Session struct {
	ID        string
	UserID    string
	Data      map[string]string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthMethod は認証に使用された方式を表す。
type AuthMethod string

const (
	// AuthMethodSession はセッションCookieによる認証。
	AuthMethodSession AuthMethod = "session"
	// AuthMethodToken はBearerトークンによる認証。
	AuthMethodToken AuthMethod = "token"
)

// Identity は認証済みリクエストに付与される解決済みの識別情報を表す。
// セッション認証の場合、Rolesはリクエスト時点で集約された最新の結果。
// トークン認証の場合、Rolesはトークン発行時点のスナップショット。
// イミュータブルとして扱い、コンテキスト経由で受け渡す。
type Identity struct {
	UserID     string
	Email      string
	Name       string
	Roles      []Role
	AuthMethod AuthMethod
}

// HasRole は識別情報が指定ロールのいずれかを保持しているかを返す。
func (i *Identity) HasRole(roles ...Role) bool {
	for _, have := range i.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
