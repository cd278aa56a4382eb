package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	Guard             *middleware.Guard
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService      AuthServiceInterface
	AuthConfig       AuthHandlerConfig
	UserFinder       UserFinder
	PermissionLister PermissionLister

	// プロジェクト
	ProjectService ProjectServiceInterface
	ProjectLister  ProjectLister

	// ユーザー管理
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → CSRF →
//	  (認証ルート: Login専用レート制限)
//	  (保護ルート: Auth → RateLimit(General) → Guard)
//
// CSRF検証はセッションCookie認証のリクエストにのみ適用され、
// Bearerトークン認証のリクエストはスキップされる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.UserFinder, deps.ProjectLister, deps.AuthConfig)
	projectHandler := NewProjectHandler(deps.ProjectService)
	userHandler := NewUserHandler(deps.UserService)
	permissionsHandler := NewPermissionsHandler(deps.PermissionLister)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		// POST /auth/login - ログイン専用レート制限を追加
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 認証必須の認証ルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
			r.Get("/me", authHandler.Me)
			r.Get("/permissions", permissionsHandler.ListPermissions)
			r.Post("/token/refresh", authHandler.RefreshToken)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロジェクト管理
		r.Route("/api/projects", func(r chi.Router) {
			r.Post("/", projectHandler.CreateProject)
			r.Get("/", projectHandler.ListProjects)

			r.Route("/{id}", func(r chi.Router) {
				// メンバーであれば閲覧可能
				r.With(deps.Guard.RequireProjectAccess()).Get("/", projectHandler.GetProject)

				// メンバー管理はプロジェクトadminのみ
				r.Route("/members", func(r chi.Router) {
					r.Use(deps.Guard.RequireProjectRole(model.RoleAdmin))
					r.Post("/", projectHandler.AddMember)
					r.Delete("/{userID}", projectHandler.RemoveMember)
				})
			})
		})

		// ユーザー管理（いずれかのプロジェクトでadminロールを持つ場合のみ）
		r.Route("/api/users", func(r chi.Router) {
			r.Use(deps.Guard.RequireRole(model.RoleAdmin))
			r.Post("/", userHandler.CreateUser)
			r.Post("/{id}/disable", userHandler.DisableUser)
		})
	})

	return r
}
