// Package auth は認証・セッション管理・ロール集約のビジネスロジックを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/password"
	"github.com/hitoshi/guardpost/internal/repository"
)

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
// nilを渡した場合は記録をスキップする。
type MetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordSessionCreated()
	RecordSessionRevoked()
	RecordTokenIssued()
	RecordTokenVerifyFailure(kind string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// セッションの正系はこのサービスが所有する（永続レコード + 高速エントリの
// 二重書き込み）。外部のセッション発行機構への委譲は行わない。
type Service struct {
	userRepo    repository.UserRepository
	memberRepo  repository.MembershipRepository
	sessionRepo repository.SessionRepository
	kvStore     repository.SessionKVStore
	hasher      *password.Hasher
	tokens      *TokenIssuer
	metrics     MetricsRecorder
	config      ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	memberRepo repository.MembershipRepository,
	sessionRepo repository.SessionRepository,
	kvStore repository.SessionKVStore,
	hasher *password.Hasher,
	tokens *TokenIssuer,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		memberRepo:  memberRepo,
		sessionRepo: sessionRepo,
		kvStore:     kvStore,
		hasher:      hasher,
		tokens:      tokens,
		metrics:     metrics,
		config:      config,
	}
}

// LoginResult はログイン成功時の結果を表す。
type LoginResult struct {
	User    *model.User
	Session *model.Session
	Roles   []model.Role
	Token   string
}

// Login はメールアドレスとパスワードで認証し、セッションとBearerトークンを発行する。
//
// 「ユーザー不在」「無効化済み」「パスワード不一致」はいずれも同一の
// INVALID_CREDENTIALSとして返し、原因を列挙可能にしない。
// 区別が必要な詳細はサーバーログにのみ残す。
//
// 成功時の副作用: last_login_atの更新と、提示パスワードが強固さの
// しきい値未満の場合のpassword_requires_upgradeフラグ設定。
// フラグ判定はパスワード検証の成功後にのみ行い、副作用の保存失敗は
// ログインを中断させない（ログのみ）。
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmailWithPassword(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user for login: %w", err)
	}
	if user == nil {
		slog.Info("login rejected: user not found", slog.String("email", email))
		s.recordLoginFailure("user_not_found")
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.IsActive() {
		slog.Info("login rejected: user disabled", slog.String("user_id", user.ID))
		s.recordLoginFailure("user_disabled")
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(plainPassword, user.PasswordHash) {
		slog.Info("login rejected: password mismatch", slog.String("user_id", user.ID))
		s.recordLoginFailure("bad_password")
		return nil, model.NewInvalidCredentialsError()
	}

	// 副作用: 最終ログイン時刻とパスワード強度フラグの更新。
	// 保存失敗はログインを阻害しない。
	now := time.Now()
	user.LastLoginAt = &now
	if password.RequiresUpgrade(plainPassword) && !user.PasswordRequiresUpgrade {
		user.PasswordRequiresUpgrade = true
		slog.Info("password upgrade flagged", slog.String("user_id", user.ID))
	}
	saved := *user
	saved.PasswordHash = "" // ハッシュの再書き込みはしない
	if err := s.userRepo.Save(ctx, &saved); err != nil {
		slog.Error("failed to persist login side effects",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	roles, err := s.AggregateRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate roles at login: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
		s.metrics.RecordTokenIssued()
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Int("role_count", len(roles)),
	)

	user.PasswordHash = ""
	return &LoginResult{
		User:    user,
		Session: session,
		Roles:   roles,
		Token:   token,
	}, nil
}

// Logout はセッションを失効させる。高速エントリと永続レコードの両方を削除する。
// 既に失効済み・未存在のセッションに対しても成功する（冪等）。
// 書き込み経路のため、ストアエラーはそのまま伝播する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.kvStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session entry: %w", err)
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionRevoked()
	}
	slog.Info("session revoked", slog.String("session_id", sessionID))
	return nil
}

// ValidateSession はセッションIDから認証済み識別情報を解決する。
//
// フェイルクローズド: 高速エントリの欠落・ストアエラーはいずれも
// 「セッション無効」として扱い、永続レコードの残存有無は問わない。
// 高速エントリが存在する場合も、永続レコードの存在と有効期限を独立に検証する。
// ユーザーが無効化されている場合は解決を拒否するが、セッション自体は
// 失効させない（ソフト拒否。次のリクエストでも再評価される）。
//
// 読み取り経路のため、ストアレベルの障害はSESSION_INVALIDに降格させ、
// リクエストパイプラインに500を伝播させない。
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, model.NewSessionInvalidError()
	}

	userID, err := s.kvStore.Get(ctx, sessionID)
	if err != nil {
		slog.Error("session fast-store lookup failed, failing closed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewSessionInvalidError()
	}
	if userID == "" {
		return nil, model.NewSessionInvalidError()
	}

	record, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		slog.Error("session record lookup failed, failing closed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewSessionInvalidError()
	}
	if record == nil || record.UserID != userID {
		return nil, model.NewSessionInvalidError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		slog.Error("user lookup failed during session validation, failing closed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewSessionInvalidError()
	}
	if user == nil || !user.IsActive() {
		return nil, model.NewSessionInvalidError()
	}

	// セッション認証はリクエストごとにロールを再集約し、
	// メンバーシップ変更を即時反映する。
	roles, err := s.AggregateRoles(ctx, user.ID)
	if err != nil {
		slog.Error("role aggregation failed during session validation, failing closed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewSessionInvalidError()
	}

	return &model.Identity{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Roles:      roles,
		AuthMethod: model.AuthMethodSession,
	}, nil
}

// ResolveToken はBearerトークンから識別情報を解決する。
// 有効性は署名と有効期限のみで決まり、ストアへの問い合わせは行わない。
// ロールはトークン発行時点のスナップショット。
func (s *Service) ResolveToken(ctx context.Context, tokenString string) (*model.Identity, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordTokenVerifyFailure(verifyFailureKind(err))
		}
		return nil, err
	}

	roles := make([]model.Role, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		role := model.Role(name)
		if model.ValidRole(role) {
			roles = append(roles, role)
		}
	}

	return &model.Identity{
		UserID:     claims.UserID,
		Roles:      roles,
		AuthMethod: model.AuthMethodToken,
	}, nil
}

// RefreshToken はロールを再集約して新しいBearerトークンを発行する。
// トークンのロールスナップショットの陳腐化はこの再発行でのみ解消される。
func (s *Service) RefreshToken(ctx context.Context, userID string) (string, []model.Role, error) {
	roles, err := s.AggregateRoles(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to aggregate roles for refresh: %w", err)
	}

	token, err := s.tokens.Issue(userID, roles)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue refreshed token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}
	return token, roles, nil
}

// AggregateRoles はユーザーの全プロジェクトメンバーシップを横断した
// 重複排除済みロール集合を返す。メンバーシップゼロは空集合であり、エラーではない。
func (s *Service) AggregateRoles(ctx context.Context, userID string) ([]model.Role, error) {
	roles, err := s.memberRepo.ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles for user: %w", err)
	}
	return roles, nil
}

// createSession はセッションを生成し、永続レコードと高速エントリの両方に書き込む。
// 高速エントリの書き込みに失敗した場合は、先行して成功した永続レコードを
// ベストエフォートで削除してからエラーを伝播し、片割れセッションを残さない。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	lifetime := time.Duration(s.config.SessionMaxAge) * time.Second
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(lifetime),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session record: %w", err)
	}

	if err := s.kvStore.Set(ctx, sessionID, userID, lifetime); err != nil {
		if cleanupErr := s.sessionRepo.DeleteByID(ctx, sessionID); cleanupErr != nil {
			slog.Error("failed to clean up orphaned session record",
				slog.String("session_id", sessionID),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to save session entry: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}
	return session, nil
}

func (s *Service) recordLoginFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure(reason)
	}
}

// verifyFailureKind はトークン検証エラーをメトリクスのラベル値に変換する。
func verifyFailureKind(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeTokenExpired {
		return "expired"
	}
	return "invalid"
}

// generateSessionID は暗号的に安全な256bitのセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
