package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/guardpost/internal/auth"
	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	RefreshToken(ctx context.Context, userID string) (string, []model.Role, error)
}

// UserFinder は認証ハンドラーが必要とするユーザー検索インターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// ProjectLister は認証ハンドラーが必要とするプロジェクト一覧インターフェース。
type ProjectLister interface {
	ListForUser(ctx context.Context, userID string) ([]model.ProjectWithRoles, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	users    UserFinder
	projects ProjectLister
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, users UserFinder, projects ProjectLister, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		users:    users,
		projects: projects,
		config:   config,
	}
}

// userResponse はAPIレスポンス用のユーザー表現。パスワードハッシュは含まない。
type userResponse struct {
	ID                      string     `json:"id"`
	Email                   string     `json:"email"`
	Name                    string     `json:"name"`
	Status                  string     `json:"status"`
	LastLoginAt             *time.Time `json:"last_login_at,omitempty"`
	PasswordRequiresUpgrade bool       `json:"password_requires_upgrade"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                      u.ID,
		Email:                   u.Email,
		Name:                    u.Name,
		Status:                  string(u.Status),
		LastLoginAt:             u.LastLoginAt,
		PasswordRequiresUpgrade: u.PasswordRequiresUpgrade,
	}
}

// Login はメールアドレスとパスワードで認証し、セッションCookieと
// Bearerトークンを発行する。
// POST /auth/login
//
// 失敗レスポンスは「ユーザー不在」「パスワード不一致」「無効化済み」を
// 区別しない。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(map[string]string{
			"body": "JSONの形式が不正です。",
		}))
		return
	}

	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "メールアドレスは必須です。"
	}
	if req.Password == "" {
		fields["password"] = "パスワードは必須です。"
	}
	if len(fields) > 0 {
		middleware.WriteValidationErrorResponse(w, model.NewValidationError(fields))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only、値は不透明なセッションIDのみ）
	h.setSessionCookie(w, result.Session.ID, h.config.SessionMaxAge)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":  toUserResponse(result.User),
		"roles": result.Roles,
		"token": result.Token,
	})
}

// Logout はセッションを失効させ、Cookieをクリアする。
// POST /auth/logout
// Cookieが無い、またはセッションが既に存在しない場合は成功レスポンスを返す（冪等）。
// ストア障害で失効の書き込みに失敗した場合はエラーを返す。
// サーバー側でセッションが生きたまま成功を装ってはならない。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// 失効に失敗してもCookieはクリアした上でエラーを返す
			h.setSessionCookie(w, "", -1)
			writeServiceError(w, logoutErr)
			return
		}
	}

	h.setSessionCookie(w, "", -1)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Me は現在の認証済みユーザーのプロフィール、集約ロール、
// 所属プロジェクト一覧（プロジェクト内ロール付き）を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	user, err := h.users.FindByID(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	projects, err := h.projects.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type projectEntry struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Slug  string       `json:"slug"`
		Roles []model.Role `json:"roles"`
	}
	entries := make([]projectEntry, 0, len(projects))
	for _, p := range projects {
		entries = append(entries, projectEntry{
			ID:    p.ID,
			Name:  p.Name,
			Slug:  p.Slug,
			Roles: p.Roles,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":        toUserResponse(user),
		"roles":       identity.Roles,
		"auth_method": identity.AuthMethod,
		"projects":    entries,
	})
}

// RefreshToken はロールを再集約して新しいBearerトークンを発行する。
// POST /auth/token/refresh
// トークンのロールスナップショットの陳腐化はこの再発行でのみ解消される。
// 有効なセッションによる認証を必須とする（トークン認証では呼び出せない）。
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil || identity.AuthMethod != model.AuthMethodSession {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	token, roles, err := h.service.RefreshToken(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token": token,
		"roles": roles,
	})
}

// setSessionCookie はセッションCookieを書き込む。
// maxAgeに-1を渡すとCookieは削除される。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
