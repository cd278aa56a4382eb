package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/guardpost/internal/model"
)

// ProjectFinder はガードが必要とするプロジェクト検索インターフェース。
type ProjectFinder interface {
	FindByID(ctx context.Context, id string) (*model.Project, error)
}

// MembershipChecker はガードが必要とするメンバーシップ照会インターフェース。
type MembershipChecker interface {
	Exists(ctx context.Context, userID, projectID string) (bool, error)
	RolesInProject(ctx context.Context, userID, projectID string) ([]model.Role, error)
}

// Guard はプロジェクトスコープおよびグローバルの認可チェックを提供する。
// 認証ディスパッチャが注入した識別情報を消費する。
type Guard struct {
	projects    ProjectFinder
	memberships MembershipChecker
}

// NewGuard はGuardを生成する。
func NewGuard(projects ProjectFinder, memberships MembershipChecker) *Guard {
	return &Guard{projects: projects, memberships: memberships}
}

// RequireRole は識別情報のロール集合が許容集合と交差することを要求する
// ミドルウェアを返す。失敗時は許容ロール名を含む403を返す
// （要求ロールはシークレットではないため開示してよい）。
func (g *Guard) RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if !identity.HasRole(roles...) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewInsufficientPermissionsError(roles...))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireProjectAccess はURLパラメータ{id}のプロジェクトへのメンバーシップを
// 要求するミドルウェアを返す。成功時は解決済みプロジェクトをコンテキストに
// 注入し、下流ハンドラーの再検索を不要にする。
//
// 失敗は3種に区別される:
//   - 未認証 → 401
//   - メンバーシップなし → 403 PROJECT_ACCESS_DENIED
//   - メンバーシップ確認後にプロジェクトが消えていた → 404 PROJECT_NOT_FOUND
//     （削除との狭い競合。500ではなくnot-foundとして扱う）
func (g *Guard) RequireProjectAccess() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			project, ok := g.resolveProject(w, r)
			if !ok {
				return
			}

			ctx := ContextWithProject(r.Context(), project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireProjectRole はRequireProjectAccessに加えて、プロジェクト内ロール集合
// （グローバル集約ではなく、その場で照会した当該プロジェクトのロール）が
// 許容集合と交差することを要求するミドルウェアを返す。
func (g *Guard) RequireProjectRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			project, ok := g.resolveProject(w, r)
			if !ok {
				return
			}

			projectRoles, err := g.memberships.RolesInProject(r.Context(), identity.UserID, project.ID)
			if err != nil {
				slog.Error("failed to query project roles",
					slog.String("project_id", project.ID),
					slog.String("user_id", identity.UserID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if !intersects(projectRoles, roles) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewInsufficientPermissionsError(roles...))
				return
			}

			ctx := ContextWithProject(r.Context(), project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveProject は識別情報とURLパラメータからプロジェクトアクセスを検証する。
// 失敗時はレスポンスを書き込み済みとしてfalseを返す。
func (g *Guard) resolveProject(w http.ResponseWriter, r *http.Request) (*model.Project, bool) {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return nil, false
	}

	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(projectID))
		return nil, false
	}

	exists, err := g.memberships.Exists(r.Context(), identity.UserID, projectID)
	if err != nil {
		slog.Error("failed to check project membership",
			slog.String("project_id", projectID),
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return nil, false
	}
	if !exists {
		WriteErrorResponse(w, http.StatusForbidden, model.NewProjectAccessDeniedError(projectID))
		return nil, false
	}

	project, err := g.projects.FindByID(r.Context(), projectID)
	if err != nil {
		slog.Error("failed to load project",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return nil, false
	}
	if project == nil {
		// メンバーシップは存在したがプロジェクトが消えていた。
		// 削除との狭い競合であり、not-foundとして扱う。
		WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(projectID))
		return nil, false
	}

	return project, true
}

// intersects は2つのロール集合が交差するかを返す。
func intersects(have, want []model.Role) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
