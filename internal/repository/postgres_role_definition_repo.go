package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/guardpost/internal/model"
)

// PostgresRoleDefinitionRepo はPostgreSQLを使用したロール定義リポジトリ。
// ロール定義はマイグレーションでシードされる読み取り専用データ。
type PostgresRoleDefinitionRepo struct {
	db *sql.DB
}

// NewPostgresRoleDefinitionRepo はPostgresRoleDefinitionRepoを生成する。
func NewPostgresRoleDefinitionRepo(db *sql.DB) *PostgresRoleDefinitionRepo {
	return &PostgresRoleDefinitionRepo{db: db}
}

// FindByNames は指定ロール名に一致するロール定義を返す。
// 一致しない名前は結果に含まれない。
func (r *PostgresRoleDefinitionRepo) FindByNames(ctx context.Context, names []model.Role) ([]model.RoleDefinition, error) {
	if len(names) == 0 {
		return []model.RoleDefinition{}, nil
	}

	values := make([]string, len(names))
	for i, n := range names {
		values[i] = string(n)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT name, permissions FROM role_definitions WHERE name = ANY($1)`,
		pq.Array(values),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find role definitions: %w", err)
	}
	defer rows.Close()

	defs := []model.RoleDefinition{}
	for rows.Next() {
		var def model.RoleDefinition
		var perms pq.StringArray
		if err := rows.Scan(&def.Name, &perms); err != nil {
			return nil, fmt.Errorf("failed to scan role definition: %w", err)
		}
		def.Permissions = []string(perms)
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role definitions: %w", err)
	}

	return defs, nil
}

// compile-time interface check
var _ RoleDefinitionRepository = (*PostgresRoleDefinitionRepo)(nil)
