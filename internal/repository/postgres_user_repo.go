package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/guardpost/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, status, last_login_at, password_requires_upgrade, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.Status, &user.LastLoginAt,
		&user.PasswordRequiresUpgrade, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, status, last_login_at, password_requires_upgrade, created_at, updated_at
		 FROM users WHERE email = lower($1)`,
		email,
	).Scan(&user.ID, &user.Email, &user.Name, &user.Status, &user.LastLoginAt,
		&user.PasswordRequiresUpgrade, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// FindByEmailWithPassword はPasswordHashを含めてユーザーを検索する。
// パスワード検証を行うログイン経路専用。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmailWithPassword(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, status, last_login_at, password_requires_upgrade, created_at, updated_at
		 FROM users WHERE email = lower($1)`,
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Status,
		&user.LastLoginAt, &user.PasswordRequiresUpgrade, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
// メールアドレスの一意制約違反はRESOURCE_CONFLICTにマップする。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, status, password_requires_upgrade, created_at, updated_at)
		 VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Status,
		user.PasswordRequiresUpgrade, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewResourceConflictError("メールアドレス")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Save はユーザーの可変フィールドを更新する。
// PasswordHashは空でない場合のみ更新される（書き込み専用フィールド）。
func (r *PostgresUserRepo) Save(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2,
		     status = $3,
		     last_login_at = $4,
		     password_requires_upgrade = $5,
		     password_hash = CASE WHEN $6 <> '' THEN $6 ELSE password_hash END,
		     updated_at = now()
		 WHERE id = $1`,
		user.ID, user.Name, user.Status, user.LastLoginAt,
		user.PasswordRequiresUpgrade, user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
