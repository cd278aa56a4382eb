package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Create(ctx context.Context, input user.CreateInput) (*model.User, error)
	Disable(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
// 全エンドポイントはRequireRole(admin)ガードの通過を前提とする。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUser はユーザーを作成する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"body": "JSONの形式が不正です。",
		}))
		return
	}

	created, err := h.service.Create(r.Context(), user.CreateInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toUserResponse(created))
}

// DisableUser はユーザーを無効化し、既存セッションを全て破棄する。
// POST /api/users/{id}/disable
func (h *UserHandler) DisableUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"id": "ユーザーIDは必須です。",
		}))
		return
	}

	if err := h.service.Disable(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
