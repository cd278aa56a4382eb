// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/guardpost/internal/middleware"
	"github.com/hitoshi/guardpost/internal/model"
)

// statusForCode はドメインエラーコードをHTTPステータスコードにマップする。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeInvalidCredentials,
		model.ErrCodeSessionInvalid,
		model.ErrCodeTokenExpired,
		model.ErrCodeTokenInvalid,
		model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeInsufficientPermissions,
		model.ErrCodeProjectAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeProjectNotFound,
		model.ErrCodeMembershipNotFound,
		model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateMembership,
		model.ErrCodeResourceConflict:
		return http.StatusConflict
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// ドメインエラーは対応するステータスで返し、それ以外のインフラエラーは
// 詳細をログのみに残して相関ID付きの500を返す。
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteValidationErrorResponse(w, verr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForCode(apiErr.Code), apiErr)
		return
	}

	correlationID := middleware.WriteInternalServerError(w)
	slog.Error("unexpected service error",
		slog.String("error", err.Error()),
		slog.String("correlation_id", correlationID),
	)
}
