// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, permission, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeSessionInvalid          = "SESSION_INVALID"
	ErrCodeTokenExpired            = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid            = "TOKEN_INVALID"
	ErrCodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	ErrCodeProjectAccessDenied     = "PROJECT_ACCESS_DENIED"
	ErrCodeProjectNotFound         = "PROJECT_NOT_FOUND"
	ErrCodeDuplicateMembership     = "DUPLICATE_MEMBERSHIP"
	ErrCodeMembershipNotFound      = "MEMBERSHIP_NOT_FOUND"
	ErrCodeResourceConflict        = "RESOURCE_CONFLICT"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeUnauthenticated         = "UNAUTHENTICATED"
)

// NewUnauthenticatedError は認証されていないリクエストに対する汎用エラーを生成する。
// セッション・トークンのどちらの方式がどう失敗したかは開示しない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインするか、有効なトークンを指定してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// 「ユーザー不在」「パスワード不一致」「無効化済み」のいずれであっても
// 同一のエラーを返し、原因を列挙可能にしない。詳細はサーバーログのみに残す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewSessionInvalidError はセッション無効エラーを生成する。
// 未存在・期限切れ・失効・ストア不整合のすべてを包含する。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionInvalid,
		Message:  "セッションが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
// 署名は有効だが有効期限を過ぎている場合に使用する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "トークンを再発行してください。",
	}
}

// NewTokenInvalidError はトークン不正エラーを生成する。
// 署名不正・形式不正などのデコード失敗全般に使用する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "トークンが不正です。",
		Category: "auth",
		Action:   "ログインし直してトークンを再取得してください。",
	}
}

// NewInsufficientPermissionsError は権限不足エラーを生成する。
// 要求されたロール集合はシークレットではないためメッセージに含めてよい。
func NewInsufficientPermissionsError(required ...Role) *APIError {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return &APIError{
		Code:     ErrCodeInsufficientPermissions,
		Message:  fmt.Sprintf("この操作には次のいずれかのロールが必要です: %s", strings.Join(names, ", ")),
		Category: "permission",
		Action:   "プロジェクト管理者にロールの付与を依頼してください。",
	}
}

// NewProjectAccessDeniedError はプロジェクトアクセス拒否エラーを生成する。
// メンバーシップが存在しない場合に使用する。
func NewProjectAccessDeniedError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectAccessDenied,
		Message:  fmt.Sprintf("プロジェクトへのアクセス権がありません: %s", projectID),
		Category: "permission",
		Action:   "プロジェクト管理者にメンバー追加を依頼してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "validation",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewDuplicateMembershipError はメンバーシップ重複エラーを生成する。
func NewDuplicateMembershipError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateMembership,
		Message:  "このユーザーは既にプロジェクトのメンバーです。",
		Category: "validation",
		Action:   "メンバー一覧を確認してください。ロールを変更する場合は削除後に再追加してください。",
	}
}

// NewMembershipNotFoundError はメンバーシップ未検出エラーを生成する。
func NewMembershipNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMembershipNotFound,
		Message:  "このユーザーはプロジェクトのメンバーではありません。",
		Category: "validation",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewResourceConflictError はリソース競合エラーを生成する（例: メールアドレス重複）。
func NewResourceConflictError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeResourceConflict,
		Message:  fmt.Sprintf("%sは既に使用されています。", resource),
		Category: "validation",
		Action:   "別の値を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// ValidationError は入力検証エラーを表す。
// フィールドごとの違反内容を列挙する。
type ValidationError struct {
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
