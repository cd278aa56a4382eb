// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/guardpost/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// パスワードハッシュは書き込み専用として扱い、通常の読み取りには含めない。
// ログイン経路のみFindByEmailWithPasswordで明示的にオプトインする。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	// PasswordHashは含まれない。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを検索する。
	// 見つからない場合はnilを返す。PasswordHashは含まれない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmailWithPassword はPasswordHashを含めてユーザーを検索する。
	// パスワード検証を行うログイン経路専用。見つからない場合はnilを返す。
	FindByEmailWithPassword(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスの一意性はDBの一意制約が最終的な番人となり、
	// 制約違反はドメインエラー（RESOURCE_CONFLICT）にマップされる。
	Create(ctx context.Context, user *model.User) error

	// Save はユーザーの可変フィールドを更新する。
	// PasswordHashは空でない場合のみ更新される。
	Save(ctx context.Context, user *model.User) error
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// FindBySlug はスラッグでプロジェクトを検索する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Project, error)

	// CreateWithAdminMembership はプロジェクトと作成者のadminメンバーシップを
	// 同一トランザクションで作成する。どちらかが失敗した場合は両方ロールバックし、
	// 孤児プロジェクトを残さない。
	CreateWithAdminMembership(ctx context.Context, project *model.Project) error
}

// MembershipRepository はユーザー・プロジェクト間メンバーシップの永続化インターフェース。
type MembershipRepository interface {
	// Create はメンバーシップを作成する。
	// (user, project)ペアの一意制約違反はDUPLICATE_MEMBERSHIPにマップされる。
	Create(ctx context.Context, membership *model.Membership) error

	// Delete はメンバーシップを削除する。
	// 対象が存在しない場合はMEMBERSHIP_NOT_FOUNDを返す（重複エラーとは区別される）。
	Delete(ctx context.Context, userID, projectID string) error

	// RolesInProject は指定ユーザーの指定プロジェクト内ロール集合を返す。
	// メンバーシップが存在しない場合は空スライスを返す（エラーにはしない）。
	RolesInProject(ctx context.Context, userID, projectID string) ([]model.Role, error)

	// ListRolesForUser はユーザーの全メンバーシップを横断した
	// 重複排除済みロール集合を返す。メンバーシップゼロの場合は空スライス。
	ListRolesForUser(ctx context.Context, userID string) ([]model.Role, error)

	// ListProjectsForUser はユーザーが所属する全プロジェクトを
	// プロジェクト内ロール付きで返す。
	ListProjectsForUser(ctx context.Context, userID string) ([]model.ProjectWithRoles, error)

	// Exists は(user, project)のメンバーシップが存在するかを返す。
	Exists(ctx context.Context, userID, projectID string) (bool, error)
}

// SessionRepository はセッションの永続レコードの永続化インターフェース。
// 高速ストアとは独立に監査・一覧・期限ベースのGCを担う。
type SessionRepository interface {
	// Create はセッションレコードを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDの未期限セッションを取得する。
	// 期限切れまたは未存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionKVStore はセッションの高速ストア（キー session:<id> → ユーザーID）の
// インターフェース。TTLは永続レコードの残存期間を超えない。
type SessionKVStore interface {
	// Set はセッションIDとユーザーIDのマッピングをTTL付きで書き込む。
	Set(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	// Get はセッションIDに対応するユーザーIDを返す。
	// エントリが存在しない場合は空文字列を返す（エラーにはしない）。
	Get(ctx context.Context, sessionID string) (string, error)
	// Delete はエントリを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, sessionID string) error
}

// RoleDefinitionRepository はロール定義（ロール名→権限集合）の読み取りインターフェース。
type RoleDefinitionRepository interface {
	// FindByNames は指定ロール名に一致するロール定義を返す。
	// 一致しない名前は結果に含まれない。
	FindByNames(ctx context.Context, names []model.Role) ([]model.RoleDefinition, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
