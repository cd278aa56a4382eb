package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/guardpost/internal/auth"
	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	LoginFunc        func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	LogoutFunc       func(ctx context.Context, sessionID string) error
	RefreshTokenFunc func(ctx context.Context, userID string) (string, []model.Role, error)
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	return m.LoginFunc(ctx, email, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.LogoutFunc(ctx, sessionID)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, userID string) (string, []model.Role, error) {
	return m.RefreshTokenFunc(ctx, userID)
}

type mockUserFinder struct {
	FindByIDFunc func(ctx context.Context, id string) (*model.User, error)
}

var _ UserFinder = (*mockUserFinder)(nil)

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.FindByIDFunc(ctx, id)
}

type mockProjectLister struct {
	ListForUserFunc func(ctx context.Context, userID string) ([]model.ProjectWithRoles, error)
}

var _ ProjectLister = (*mockProjectLister)(nil)

func (m *mockProjectLister) ListForUser(ctx context.Context, userID string) ([]model.ProjectWithRoles, error) {
	return m.ListForUserFunc(ctx, userID)
}

// --- テストヘルパー ---

func activeTestUser() *model.User {
	return &model.User{
		ID:     "user-1",
		Email:  "alice@example.com",
		Name:   "alice",
		Status: model.UserStatusActive,
	}
}

func loginSuccessResult() *auth.LoginResult {
	return &auth.LoginResult{
		User: activeTestUser(),
		Session: &model.Session{
			ID:        "sess-1",
			UserID:    "user-1",
			ExpiresAt: time.Now().Add(time.Hour),
		},
		Roles: []model.Role{model.RoleOperator},
		Token: "signed-token",
	}
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

// --- Login ---

func TestLogin_Success_SetsSessionCookieAndReturnsToken(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			if email != "alice@example.com" || password != "secret-password" {
				t.Errorf("unexpected credentials: %s / %s", email, password)
			}
			return loginSuccessResult(), nil
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{SessionMaxAge: 86400})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"secret-password"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	cookie := sessionCookieFrom(t, rec)
	if cookie == nil {
		t.Fatal("セッションCookieが設定されていない")
	}
	if cookie.Value != "sess-1" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "sess-1")
	}
	if !cookie.HttpOnly {
		t.Error("セッションCookieはHttpOnlyであるはず")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("cookie MaxAge = %d, want 86400", cookie.MaxAge)
	}

	body := decodeBody(t, rec)
	if body["token"] != "signed-token" {
		t.Errorf("token = %v, want signed-token", body["token"])
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatal("userフィールドがオブジェクトでない")
	}
	if user["email"] != "alice@example.com" {
		t.Errorf("user.email = %v", user["email"])
	}
	if _, exists := user["password_hash"]; exists {
		t.Error("レスポンスにパスワードハッシュを含めてはならない")
	}
}

func TestLogin_InvalidCredentials_Returns401(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if sessionCookieFrom(t, rec) != nil {
		t.Error("認証失敗時にセッションCookieを設定してはならない")
	}
}

func TestLogin_MissingFields_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			t.Fatal("バリデーション失敗時にサービスを呼んではならない")
			return nil, nil
		},
	}, nil, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"","password":""}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogin_MalformedJSON_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{invalid`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// --- Logout ---

func TestLogout_RevokesSessionAndClearsCookie(t *testing.T) {
	var revokedID string
	service := &mockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID string) error {
			revokedID = sessionID
			return nil
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if revokedID != "sess-1" {
		t.Errorf("revoked session = %q, want %q", revokedID, "sess-1")
	}
	cookie := sessionCookieFrom(t, rec)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("セッションCookieが削除されていない")
	}
}

func TestLogout_WithoutCookie_IsIdempotent(t *testing.T) {
	service := &mockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID string) error {
			t.Fatal("Cookieなしではサービスを呼ばないはず")
			return nil
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLogout_StoreFailure_Returns500AndClearsCookie(t *testing.T) {
	service := &mockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID string) error {
			return errors.New("failed to delete session entry: connection refused")
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	// セッションがサーバー側で生きたまま成功を返してはならない
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	body := decodeBody(t, rec)
	if body["status"] == "ok" {
		t.Error("失効失敗時に成功レスポンスを返してはいけない")
	}
	cookie := sessionCookieFrom(t, rec)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("失効失敗時でもCookieはクリアされるはず")
	}
}

// --- Me ---

func TestMe_ReturnsProfileRolesAndProjects(t *testing.T) {
	users := &mockUserFinder{
		FindByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return activeTestUser(), nil
		},
	}
	projects := &mockProjectLister{
		ListForUserFunc: func(ctx context.Context, userID string) ([]model.ProjectWithRoles, error) {
			return []model.ProjectWithRoles{
				{
					Project: model.Project{ID: "proj-1", Name: "Fleet Control", Slug: "fleet-control"},
					Roles:   []model.Role{model.RoleAdmin},
				},
			}, nil
		},
	}
	h := NewAuthHandler(&mockAuthService{}, users, projects, AuthHandlerConfig{})

	identity := &model.Identity{
		UserID:     "user-1",
		Roles:      []model.Role{model.RoleAdmin, model.RoleOperator},
		AuthMethod: model.AuthMethodSession,
	}
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	if body["auth_method"] != "session" {
		t.Errorf("auth_method = %v, want session", body["auth_method"])
	}
	entries, ok := body["projects"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("projects = %v, want 1 entry", body["projects"])
	}
	entry := entries[0].(map[string]any)
	if entry["slug"] != "fleet-control" {
		t.Errorf("project slug = %v", entry["slug"])
	}
}

func TestMe_NoIdentity_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserFinder{}, &mockProjectLister{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMe_UserVanished_Returns404(t *testing.T) {
	users := &mockUserFinder{
		FindByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	h := NewAuthHandler(&mockAuthService{}, users, &mockProjectLister{}, AuthHandlerConfig{})

	identity := &model.Identity{UserID: "user-gone", AuthMethod: model.AuthMethodSession}
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- RefreshToken ---

func TestRefreshToken_SessionAuth_IssuesNewToken(t *testing.T) {
	service := &mockAuthService{
		RefreshTokenFunc: func(ctx context.Context, userID string) (string, []model.Role, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return "fresh-token", []model.Role{model.RoleAnalyst}, nil
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{})

	identity := &model.Identity{UserID: "user-1", AuthMethod: model.AuthMethodSession}
	req := httptest.NewRequest(http.MethodPost, "/auth/token/refresh", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	if body["token"] != "fresh-token" {
		t.Errorf("token = %v, want fresh-token", body["token"])
	}
}

func TestRefreshToken_TokenAuth_Rejected(t *testing.T) {
	// トークン認証でのトークン再発行は認めない（セッション必須）
	service := &mockAuthService{
		RefreshTokenFunc: func(ctx context.Context, userID string) (string, []model.Role, error) {
			t.Fatal("トークン認証では再発行サービスを呼ばないはず")
			return "", nil, nil
		},
	}
	h := NewAuthHandler(service, nil, nil, AuthHandlerConfig{})

	identity := &model.Identity{UserID: "user-1", AuthMethod: model.AuthMethodToken}
	req := httptest.NewRequest(http.MethodPost, "/auth/token/refresh", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
