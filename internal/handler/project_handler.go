package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	Create(ctx context.Context, input project.CreateInput) (*model.Project, error)
	ListForUser(ctx context.Context, userID string) ([]model.ProjectWithRoles, error)
	AddMember(ctx context.Context, projectID, userID string, roles []model.Role) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

// ProjectHandler はプロジェクト関連のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// projectResponse はAPIレスポンス用のプロジェクト表現。
type projectResponse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Slug            string       `json:"slug"`
	DefaultPriority int          `json:"default_priority"`
	MaxAgents       int          `json:"max_agents"`
	Roles           []model.Role `json:"roles,omitempty"`
}

func toProjectResponse(p *model.Project, roles []model.Role) projectResponse {
	return projectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Slug:            p.Slug,
		DefaultPriority: p.Settings.DefaultPriority,
		MaxAgents:       p.Settings.MaxAgents,
		Roles:           roles,
	}
}

// CreateProject はプロジェクトを作成する。作成者には同一トランザクションで
// adminロールのメンバーシップが付与される。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req struct {
		Name            string `json:"name"`
		Description     string `json:"description"`
		Slug            string `json:"slug"`
		DefaultPriority int    `json:"default_priority"`
		MaxAgents       int    `json:"max_agents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"body": "JSONの形式が不正です。",
		}))
		return
	}

	created, err := h.service.Create(r.Context(), project.CreateInput{
		Name:            req.Name,
		Description:     req.Description,
		Slug:            req.Slug,
		DefaultPriority: req.DefaultPriority,
		MaxAgents:       req.MaxAgents,
		CreatedBy:       identity.UserID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProjectResponse(created, []model.Role{model.RoleAdmin}))
}

// ListProjects は呼び出しユーザーが所属するプロジェクト一覧を
// プロジェクト内ロール付きで返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	projects, err := h.service.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entries := make([]projectResponse, 0, len(projects))
	for i := range projects {
		entries = append(entries, toProjectResponse(&projects[i].Project, projects[i].Roles))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"projects": entries})
}

// GetProject はプロジェクト詳細を返す。
// GET /api/projects/{id}
// RequireProjectAccessガードが解決済みプロジェクトをコンテキストに注入している。
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.ProjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(""))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponse(p, nil))
}

// AddMember はプロジェクトにメンバーを追加する。
// POST /api/projects/{id}/members
// RequireProjectRole(admin)ガードの通過を前提とする。
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.ProjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(""))
		return
	}

	var req struct {
		UserID string       `json:"user_id"`
		Roles  []model.Role `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"body": "JSONの形式が不正です。",
		}))
		return
	}
	if req.UserID == "" {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"user_id": "ユーザーIDは必須です。",
		}))
		return
	}

	if err := h.service.AddMember(r.Context(), p.ID, req.UserID, req.Roles); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RemoveMember はプロジェクトからメンバーを削除する。
// DELETE /api/projects/{id}/members/{userID}
// RequireProjectRole(admin)ガードの通過を前提とする。
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.ProjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(""))
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"user_id": "ユーザーIDは必須です。",
		}))
		return
	}

	if err := h.service.RemoveMember(r.Context(), p.ID, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
