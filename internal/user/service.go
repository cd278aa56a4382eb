// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/guardpost/internal/model"
	"github.com/hitoshi/guardpost/internal/password"
	"github.com/hitoshi/guardpost/internal/repository"
)

// NameSanitizer はユーザー入力テキストのサニタイズインターフェース。
type NameSanitizer interface {
	Sanitize(raw string) string
}

// Service はユーザー管理のサービス層。
// ユーザーの作成・無効化のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      *password.Hasher
	sanitizer   NameSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher *password.Hasher,
	sanitizer NameSanitizer,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		sanitizer:   sanitizer,
	}
}

// CreateInput はユーザー作成の入力を表す。
type CreateInput struct {
	Email    string
	Password string
	Name     string
}

// Create はユーザーを作成する。
// メールアドレスは小文字正規化され、一意性はDBの一意制約が最終的に保証する。
// パスワードはbcryptでハッシュ化され、平文は保存もログ出力もされない。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.User, error) {
	fields := map[string]string{}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "有効なメールアドレスを指定してください。"
	}
	if input.Password == "" {
		fields["password"] = "パスワードは必須です。"
	}

	name := strings.TrimSpace(input.Name)
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	if name == "" {
		fields["name"] = "表示名は必須です。"
	}

	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	user.PasswordHash = ""
	return user, nil
}

// Disable はユーザーを無効化し、全セッションを削除する。
// 無効化済みユーザーのセッションはいずれにせよ検証時にソフト拒否されるが、
// セッション削除により即時に失効させる。
func (s *Service) Disable(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	user.Status = model.UserStatusDisabled
	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to disable user: %w", err)
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete user sessions: %w", err)
		}
	}

	slog.Info("user disabled", slog.String("user_id", userID))
	return nil
}
