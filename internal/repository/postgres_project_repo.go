package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/guardpost/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindBySlug はスラッグでプロジェクトを検索する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindBySlug(ctx context.Context, slug string) (*model.Project, error) {
	return r.findOne(ctx, `WHERE slug = $1`, slug)
}

func (r *PostgresProjectRepo) findOne(ctx context.Context, where string, arg any) (*model.Project, error) {
	project := &model.Project{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, slug, default_priority, max_agents, created_by, created_at, updated_at
		 FROM projects `+where,
		arg,
	).Scan(&project.ID, &project.Name, &project.Description, &project.Slug,
		&project.Settings.DefaultPriority, &project.Settings.MaxAgents,
		&project.CreatedBy, &project.CreatedAt, &project.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	return project, nil
}

// CreateWithAdminMembership はプロジェクトと作成者のadminメンバーシップを
// 同一トランザクションで作成する。どちらかの挿入が失敗した場合は
// 全体をロールバックし、孤児プロジェクトを残さない。
// スラッグの一意制約違反はRESOURCE_CONFLICTにマップされる。
func (r *PostgresProjectRepo) CreateWithAdminMembership(ctx context.Context, project *model.Project) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// プロジェクトを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, slug, default_priority, max_agents, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		project.ID, project.Name, project.Description, project.Slug,
		project.Settings.DefaultPriority, project.Settings.MaxAgents,
		project.CreatedBy, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewResourceConflictError("スラッグ")
		}
		return fmt.Errorf("failed to insert project: %w", err)
	}

	// 作成者にadminメンバーシップを付与
	_, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, project_id, roles, created_at)
		 VALUES ($1, $2, $3, $4)`,
		project.CreatedBy, project.ID, pq.Array([]string{string(model.RoleAdmin)}), project.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
