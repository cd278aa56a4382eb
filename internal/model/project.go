// Package model はドメインモデルを定義する。
package model

import "time"

// Role はプロジェクト内で付与される権限ロールを表す。
// 固定の4値語彙のみ有効。権限（permission）は別概念であり、
// ロール定義テーブルがロール名→権限文字列集合のマッピングを保持する。
type Role string

const (
	// RoleAdmin はプロジェクト管理者ロール。
	RoleAdmin Role = "admin"
	// RoleOperator はオペレーターロール。
	RoleOperator Role = "operator"
	// RoleAnalyst はアナリストロール。
	RoleAnalyst Role = "analyst"
	// RoleAgentOwner はエージェント所有者ロール。
	RoleAgentOwner Role = "agent_owner"
)

// AllRoles は有効な全ロールを返す。
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleOperator, RoleAnalyst, RoleAgentOwner}
}

// ValidRole はロール値が固定語彙に含まれるかを判定する。
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleAnalyst, RoleAgentOwner:
		return true
	default:
		return false
	}
}

// ProjectSettings はプロジェクト単位の設定を表す。
type ProjectSettings struct {
	DefaultPriority int
	MaxAgents       int
}

// Project はテナント境界となるプロジェクトを表す。
// Slugは名前から自動導出され（小文字化 + 非英数字をハイフンに集約）、
// 作成後は不変。グローバルに一意。
type Project struct {
	ID          string
	Name        string
	Description string
	Slug        string
	Settings    ProjectSettings
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership はユーザーとプロジェクトの多対多エッジを表す。
// (user, project)ペアごとに最大1行。Rolesは空でない集合。
// ロール変更は削除+再追加で行い、行の更新は行わない。
type Membership struct {
	UserID    string
	ProjectID string
	Roles     []Role
	CreatedAt time.Time
}

// ProjectWithRoles はプロジェクトと、あるユーザーのそのプロジェクト内ロールを
// 結合した読み取り用構造体。
type ProjectWithRoles struct {
	Project
	Roles []Role
}

// RoleDefinition はロール名と宣言された権限文字列集合のマッピングを表す。
// 権限はデータ定義のオープン語彙であり、ロールのクローズド語彙とは区別する。
type RoleDefinition struct {
	Name        Role
	Permissions []string
}
