package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/repository"
)

// PermissionChecker は識別情報が特定の権限文字列を持つかを判定する。
// ロールはクローズドな4値語彙、権限はロール定義テーブルが宣言する
// オープン語彙であり、両者は混同しない。
type PermissionChecker struct {
	roleDefRepo repository.RoleDefinitionRepository
}

// NewPermissionChecker はPermissionCheckerを生成する。
func NewPermissionChecker(roleDefRepo repository.RoleDefinitionRepository) *PermissionChecker {
	return &PermissionChecker{roleDefRepo: roleDefRepo}
}

// HasPermission は識別情報のロール集合に対応するロール定義の権限を合算し、
// 指定の権限が含まれるかを返す。
// ロール集合が空の場合はストアに問い合わせずfalseを返す。
func (c *PermissionChecker) HasPermission(ctx context.Context, identity *model.Identity, permission string) (bool, error) {
	if identity == nil || len(identity.Roles) == 0 {
		return false, nil
	}

	defs, err := c.roleDefRepo.FindByNames(ctx, identity.Roles)
	if err != nil {
		return false, fmt.Errorf("failed to load role definitions: %w", err)
	}

	for _, def := range defs {
		for _, p := range def.Permissions {
			if p == permission {
				return true, nil
			}
		}
	}
	return false, nil
}

// Permissions は識別情報のロール集合が持つ権限の和集合をソートして返す。
// ロール集合が空の場合はストアに問い合わせず空スライスを返す。
func (c *PermissionChecker) Permissions(ctx context.Context, identity *model.Identity) ([]string, error) {
	if identity == nil || len(identity.Roles) == 0 {
		return []string{}, nil
	}

	defs, err := c.roleDefRepo.FindByNames(ctx, identity.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to load role definitions: %w", err)
	}

	seen := map[string]struct{}{}
	for _, def := range defs {
		for _, p := range def.Permissions {
			seen[p] = struct{}{}
		}
	}

	perms := make([]string, 0, len(seen))
	for p := range seen {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, nil
}
