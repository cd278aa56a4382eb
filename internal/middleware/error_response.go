package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/guardpost/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。内部エラーの場合のみCorrelationIDが付与され、
// サーバーログとの突き合わせに使用できる。
type ErrorResponseBody struct {
	Code          string            `json:"code"`
	Message       string            `json:"message"`
	Category      string            `json:"category"`
	Action        string            `json:"action"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteValidationErrorResponse は入力検証エラーをフィールドごとの違反内容付きで
// 書き込む。
func WriteValidationErrorResponse(w http.ResponseWriter, verr *model.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     model.ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各フィールドのエラー内容を確認してください。",
		Fields:   verr.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込み、
// 生成した相関IDを返す。詳細はログのみに記録し、ユーザーには相関ID付きの
// 一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) string {
	correlationID := uuid.New().String()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:          "INTERNAL_ERROR",
		Message:       "内部エラーが発生しました。",
		Category:      "system",
		Action:        "しばらく待ってから再度お試しください。解決しない場合は相関IDを添えてお問い合わせください。",
		CorrelationID: correlationID,
	})
	return correlationID
}
