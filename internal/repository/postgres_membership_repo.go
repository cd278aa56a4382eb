package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/guardpost/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用したメンバーシップリポジトリ。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// Create はメンバーシップを作成する。
// (user, project)の一意制約違反はDUPLICATE_MEMBERSHIPにマップする。
// 並行する同一ペアの追加はDB制約によりちょうど1つだけ成功する。
func (r *PostgresMembershipRepo) Create(ctx context.Context, membership *model.Membership) error {
	roles := make([]string, len(membership.Roles))
	for i, role := range membership.Roles {
		roles[i] = string(role)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, project_id, roles, created_at)
		 VALUES ($1, $2, $3, $4)`,
		membership.UserID, membership.ProjectID, pq.Array(roles), membership.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewDuplicateMembershipError()
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// Delete はメンバーシップを削除する。
// 対象が存在しない場合はMEMBERSHIP_NOT_FOUNDを返す。
func (r *PostgresMembershipRepo) Delete(ctx context.Context, userID, projectID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND project_id = $2`,
		userID, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewMembershipNotFoundError()
	}
	return nil
}

// RolesInProject は指定ユーザーの指定プロジェクト内ロール集合を返す。
// メンバーシップが存在しない場合は空スライスを返す（エラーにはしない）。
func (r *PostgresMembershipRepo) RolesInProject(ctx context.Context, userID, projectID string) ([]model.Role, error) {
	var roles pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT roles FROM memberships WHERE user_id = $1 AND project_id = $2`,
		userID, projectID,
	).Scan(&roles)

	if err == sql.ErrNoRows {
		return []model.Role{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership roles: %w", err)
	}

	return toRoles(roles), nil
}

// ListRolesForUser はユーザーの全メンバーシップを横断した重複排除済み
// ロール集合を返す。集約は単一のSQL読み取りで行い、共有カーソルの
// 並行アクセス問題を持ち込まない。メンバーシップゼロの場合は空スライス。
func (r *PostgresMembershipRepo) ListRolesForUser(ctx context.Context, userID string) ([]model.Role, error) {
	var roles pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(DISTINCT role), '{}')
		 FROM memberships, unnest(roles) AS role
		 WHERE user_id = $1`,
		userID,
	).Scan(&roles)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate roles: %w", err)
	}

	return toRoles(roles), nil
}

// ListProjectsForUser はユーザーが所属する全プロジェクトを
// プロジェクト内ロール付きで返す。
func (r *PostgresMembershipRepo) ListProjectsForUser(ctx context.Context, userID string) ([]model.ProjectWithRoles, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.slug, p.default_priority, p.max_agents,
		        p.created_by, p.created_at, p.updated_at, m.roles
		 FROM memberships m
		 JOIN projects p ON p.id = m.project_id
		 WHERE m.user_id = $1
		 ORDER BY p.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for user: %w", err)
	}
	defer rows.Close()

	projects := []model.ProjectWithRoles{}
	for rows.Next() {
		var p model.ProjectWithRoles
		var roles pq.StringArray
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Slug,
			&p.Settings.DefaultPriority, &p.Settings.MaxAgents,
			&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &roles); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		p.Roles = toRoles(roles)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}

	return projects, nil
}

// Exists は(user, project)のメンバーシップが存在するかを返す。
func (r *PostgresMembershipRepo) Exists(ctx context.Context, userID, projectID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM memberships WHERE user_id = $1 AND project_id = $2)`,
		userID, projectID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership existence: %w", err)
	}
	return exists, nil
}

// toRoles はDBの文字列配列をロールスライスに変換する。
func toRoles(values pq.StringArray) []model.Role {
	roles := make([]model.Role, 0, len(values))
	for _, v := range values {
		roles = append(roles, model.Role(v))
	}
	return roles
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
