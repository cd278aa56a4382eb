// Package project はプロジェクトとメンバーシップ管理のドメインロジックを提供する。
package project

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/repository"
)

// デフォルトのプロジェクト設定値。
const (
	defaultPriority  = 0
	defaultMaxAgents = 0 // 0は無制限
)

// NameSanitizer はユーザー入力テキストのサニタイズインターフェース。
type NameSanitizer interface {
	Sanitize(raw string) string
}

// Service はプロジェクト管理のサービス層。
type Service struct {
	projectRepo repository.ProjectRepository
	memberRepo  repository.MembershipRepository
	userRepo    repository.UserRepository
	sanitizer   NameSanitizer
}

// NewService はServiceを生成する。
func NewService(
	projectRepo repository.ProjectRepository,
	memberRepo repository.MembershipRepository,
	userRepo repository.UserRepository,
	sanitizer NameSanitizer,
) *Service {
	return &Service{
		projectRepo: projectRepo,
		memberRepo:  memberRepo,
		userRepo:    userRepo,
		sanitizer:   sanitizer,
	}
}

// CreateInput はプロジェクト作成の入力を表す。
type CreateInput struct {
	Name            string
	Description     string
	Slug            string // 省略時はNameから自動導出
	DefaultPriority int
	MaxAgents       int
	CreatedBy       string
}

// Create はプロジェクトを作成し、作成者にadminロールのメンバーシップを
// 同一トランザクションで付与する。スラッグは永続化前のバリデーション時点で
// 確定し、以後不変。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Project, error) {
	name := strings.TrimSpace(input.Name)
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	if name == "" {
		return nil, model.NewValidationError(map[string]string{
			"name": "プロジェクト名は必須です。",
		})
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = DeriveSlug(name)
	}
	if slug == "" {
		return nil, model.NewValidationError(map[string]string{
			"name": "プロジェクト名からスラッグを導出できません。英数字を含めてください。",
		})
	}

	description := input.Description
	if s.sanitizer != nil {
		description = s.sanitizer.Sanitize(description)
	}

	priority := input.DefaultPriority
	if priority == 0 {
		priority = defaultPriority
	}
	maxAgents := input.MaxAgents
	if maxAgents == 0 {
		maxAgents = defaultMaxAgents
	}

	now := time.Now()
	project := &model.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Slug:        slug,
		Settings: model.ProjectSettings{
			DefaultPriority: priority,
			MaxAgents:       maxAgents,
		},
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.projectRepo.CreateWithAdminMembership(ctx, project); err != nil {
		return nil, err
	}

	slog.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("slug", project.Slug),
		slog.String("created_by", project.CreatedBy),
	)

	return project, nil
}

// Get は指定IDのプロジェクトを取得する。見つからない場合はPROJECT_NOT_FOUND。
func (s *Service) Get(ctx context.Context, projectID string) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return project, nil
}

// ListForUser はユーザーが所属する全プロジェクトをロール付きで返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.ProjectWithRoles, error) {
	projects, err := s.memberRepo.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// AddMember は指定ユーザーをプロジェクトのメンバーに追加する。
// ロール集合は空でなく、固定語彙に含まれる値のみ有効。
// 既にメンバーの場合はDUPLICATE_MEMBERSHIP（ロール変更は削除+再追加で行う）。
func (s *Service) AddMember(ctx context.Context, projectID, userID string, roles []model.Role) error {
	if len(roles) == 0 {
		return model.NewValidationError(map[string]string{
			"roles": "少なくとも1つのロールを指定してください。",
		})
	}
	for _, role := range roles {
		if !model.ValidRole(role) {
			return model.NewValidationError(map[string]string{
				"roles": fmt.Sprintf("不正なロールです: %s", role),
			})
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil {
		return model.NewProjectNotFoundError(projectID)
	}

	membership := &model.Membership{
		UserID:    userID,
		ProjectID: projectID,
		Roles:     dedupeRoles(roles),
		CreatedAt: time.Now(),
	}
	if err := s.memberRepo.Create(ctx, membership); err != nil {
		return err
	}

	slog.Info("membership added",
		slog.String("project_id", projectID),
		slog.String("user_id", userID),
	)
	return nil
}

// RemoveMember は指定ユーザーのメンバーシップを削除する。
// メンバーでない場合はMEMBERSHIP_NOT_FOUND。
func (s *Service) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := s.memberRepo.Delete(ctx, userID, projectID); err != nil {
		return err
	}

	slog.Info("membership removed",
		slog.String("project_id", projectID),
		slog.String("user_id", userID),
	)
	return nil
}

// RolesInProject は指定ユーザーの指定プロジェクト内ロール集合を返す。
// メンバーシップが存在しない場合は空集合（エラーではない）。
func (s *Service) RolesInProject(ctx context.Context, userID, projectID string) ([]model.Role, error) {
	return s.memberRepo.RolesInProject(ctx, userID, projectID)
}

// HasAccess は指定ユーザーがプロジェクトにアクセスできるかを返す。
// requiredRoleが空の場合はメンバーシップの存在のみを確認する。
func (s *Service) HasAccess(ctx context.Context, userID, projectID string, requiredRole model.Role) (bool, error) {
	if requiredRole == "" {
		return s.memberRepo.Exists(ctx, userID, projectID)
	}

	roles, err := s.memberRepo.RolesInProject(ctx, userID, projectID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role == requiredRole {
			return true, nil
		}
	}
	return false, nil
}

// slugStripRe はスラッグから除去する非英数字の連続にマッチする。
var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSlug はプロジェクト名からスラッグを導出する。
// 小文字化した上で非英数字の連続を単一のハイフンに置換し、
// 先頭・末尾のハイフンを除去する。
func DeriveSlug(name string) string {
	slug := slugStripRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// dedupeRoles はロールスライスの重複を除去する（入力順を保持）。
func dedupeRoles(roles []model.Role) []model.Role {
	seen := make(map[model.Role]struct{}, len(roles))
	result := make([]model.Role, 0, len(roles))
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}
	return result
}
