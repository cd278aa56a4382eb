// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/guardpost/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
// Cookieの値は不透明なセッションIDのみで、自己記述的なトークンは使用しない
// （セッションはサーバー側で失効可能でなければならない）。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに解決済み識別情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// projectContextKey はリクエストコンテキストに解決済みプロジェクトを格納するためのキー。
var projectContextKey = contextKey("project")

// Authenticator は認証ディスパッチャが必要とする認証解決インターフェース。
type Authenticator interface {
	// ValidateSession はセッションIDから識別情報を解決する。
	// ロールはリクエスト時点で再集約される。
	ValidateSession(ctx context.Context, sessionID string) (*model.Identity, error)
	// ResolveToken はBearerトークンから識別情報を解決する。
	// ロールはトークン発行時点のスナップショット。
	ResolveToken(ctx context.Context, token string) (*model.Identity, error)
}

// NewAuthMiddleware は認証必須エンドポイント用の認証ディスパッチャを返す。
//
// 解決順序は固定: (1)セッションCookie → (2)Authorization: Bearerヘッダー。
// 先に成功した方式の識別情報をコンテキストに注入して打ち切る。
// 両方失敗した場合は汎用の401を返し、どの方式がなぜ失敗したかは開示しない。
func NewAuthMiddleware(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := resolveIdentity(r, authn)
			if identity == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware は認証任意エンドポイント用のディスパッチャを返す。
// 解決順序は必須版と同じだが、全方式が失敗してもリクエストは識別情報なしで
// 続行される。試行中のエラーは低レベルログに留め、決してリクエストを
// 中断させない（信頼境界として意図的な設計）。
func NewOptionalAuthMiddleware(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity := resolveIdentity(r, authn); identity != nil {
				ctx := context.WithValue(r.Context(), identityContextKey, identity)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveIdentity はセッション→トークンの順で識別情報の解決を試みる。
// 解決できない場合はnilを返す。個別の失敗理由はデバッグログのみに残す。
func resolveIdentity(r *http.Request, authn Authenticator) *model.Identity {
	// 1. セッションCookie
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		identity, err := authn.ValidateSession(r.Context(), cookie.Value)
		if err == nil && identity != nil {
			return identity
		}
		if err != nil {
			slog.Debug("session authentication attempt failed",
				slog.String("error", err.Error()),
			)
		}
	}

	// 2. Authorization: Bearer ヘッダー
	if token := bearerToken(r); token != "" {
		identity, err := authn.ResolveToken(r.Context(), token)
		if err == nil && identity != nil {
			return identity
		}
		if err != nil {
			slog.Debug("token authentication attempt failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// IdentityFromContext はリクエストコンテキストから解決済み識別情報を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストに識別情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// ProjectFromContext はリクエストコンテキストから解決済みプロジェクトを取得する。
// RequireProjectAccess系のガードを通過したリクエストでのみ有効。
func ProjectFromContext(ctx context.Context) (*model.Project, error) {
	project, ok := ctx.Value(projectContextKey).(*model.Project)
	if !ok || project == nil {
		return nil, fmt.Errorf("project not found in context")
	}
	return project, nil
}

// ContextWithProject はコンテキストにプロジェクトを注入する。
func ContextWithProject(ctx context.Context, project *model.Project) context.Context {
	return context.WithValue(ctx, projectContextKey, project)
}
