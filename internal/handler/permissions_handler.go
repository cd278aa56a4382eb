package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
)

// PermissionLister は識別情報の実効権限集合を解決するインターフェース。
type PermissionLister interface {
	Permissions(ctx context.Context, identity *model.Identity) ([]string, error)
}

// PermissionsHandler は権限照会のHTTPハンドラー。
type PermissionsHandler struct {
	lister PermissionLister
}

// NewPermissionsHandler はPermissionsHandlerを生成する。
func NewPermissionsHandler(lister PermissionLister) *PermissionsHandler {
	return &PermissionsHandler{lister: lister}
}

// ListPermissions は呼び出しユーザーのロール集合から導出される
// 実効権限の和集合を返す。
// GET /auth/permissions
func (h *PermissionsHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	perms, err := h.lister.Permissions(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"roles":       identity.Roles,
		"permissions": perms,
	})
}
