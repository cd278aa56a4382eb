package auth

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/repository"
)

type mockRoleDefRepo struct {
	findByNamesFn func(ctx context.Context, names []model.Role) ([]model.RoleDefinition, error)
}

func (m *mockRoleDefRepo) FindByNames(ctx context.Context, names []model.Role) ([]model.RoleDefinition, error) {
	if m.findByNamesFn != nil {
		return m.findByNamesFn(ctx, names)
	}
	return nil, nil
}

var _ repository.RoleDefinitionRepository = (*mockRoleDefRepo)(nil)

func rolesIdentity(roles ...model.Role) *model.Identity {
	return &model.Identity{UserID: "user-1", Roles: roles}
}

func TestHasPermission_RoleGrantsPermission(t *testing.T) {
	repo := &mockRoleDefRepo{
		findByNamesFn: func(_ context.Context, _ []model.Role) ([]model.RoleDefinition, error) {
			return []model.RoleDefinition{
				{Name: model.RoleOperator, Permissions: []string{"task.read", "task.write"}},
			}, nil
		},
	}
	checker := NewPermissionChecker(repo)

	ok, err := checker.HasPermission(context.Background(), rolesIdentity(model.RoleOperator), "task.write")
	if err != nil {
		t.Fatalf("HasPermission returned unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected permission granted through operator role")
	}
}

func TestHasPermission_EmptyRoles_SkipsStoreLookup(t *testing.T) {
	lookupCalled := false
	repo := &mockRoleDefRepo{
		findByNamesFn: func(_ context.Context, _ []model.Role) ([]model.RoleDefinition, error) {
			lookupCalled = true
			return nil, nil
		},
	}
	checker := NewPermissionChecker(repo)

	ok, err := checker.HasPermission(context.Background(), rolesIdentity(), "task.read")
	if err != nil {
		t.Fatalf("HasPermission returned unexpected error: %v", err)
	}
	if ok {
		t.Error("empty role set must not grant any permission")
	}
	if lookupCalled {
		t.Error("empty role set must not query the role definition store")
	}
}

func TestHasPermission_StoreError_Propagates(t *testing.T) {
	repo := &mockRoleDefRepo{
		findByNamesFn: func(_ context.Context, _ []model.Role) ([]model.RoleDefinition, error) {
			return nil, errors.New("db down")
		},
	}
	checker := NewPermissionChecker(repo)

	if _, err := checker.HasPermission(context.Background(), rolesIdentity(model.RoleAdmin), "task.read"); err == nil {
		t.Error("expected store error to propagate")
	}
}

func TestPermissions_UnionAcrossRoles_SortedAndDeduplicated(t *testing.T) {
	repo := &mockRoleDefRepo{
		findByNamesFn: func(_ context.Context, _ []model.Role) ([]model.RoleDefinition, error) {
			return []model.RoleDefinition{
				{Name: model.RoleOperator, Permissions: []string{"task.write", "task.read"}},
				{Name: model.RoleAnalyst, Permissions: []string{"analytics.read", "task.read"}},
			}, nil
		},
	}
	checker := NewPermissionChecker(repo)

	perms, err := checker.Permissions(context.Background(), rolesIdentity(model.RoleOperator, model.RoleAnalyst))
	if err != nil {
		t.Fatalf("Permissions returned unexpected error: %v", err)
	}
	want := []string{"analytics.read", "task.read", "task.write"}
	if !reflect.DeepEqual(perms, want) {
		t.Errorf("Permissions = %v, want %v", perms, want)
	}
}

func TestPermissions_EmptyRoles_ReturnsEmptySlice(t *testing.T) {
	checker := NewPermissionChecker(&mockRoleDefRepo{})

	perms, err := checker.Permissions(context.Background(), rolesIdentity())
	if err != nil {
		t.Fatalf("Permissions returned unexpected error: %v", err)
	}
	if len(perms) != 0 {
		t.Errorf("Permissions = %v, want empty", perms)
	}
}
