package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/awesome-events/internal/middleware"
	"github.com/hitoshi/awesome-events/internal/model"
)

// writeJSON はvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var cv *model.ConstraintViolationError
	if errors.As(err, &cv) {
		slog.Warn("constraint violation",
			slog.String("table", cv.Table),
			slog.String("column", cv.Column),
		)
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError(map[string][]string{cv.Column: {"を入力してください"}}))
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidImage, model.ErrCodeImageStorageDisabled:
		return http.StatusUnprocessableEntity
	case model.ErrCodeBadRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNotEventOwner, model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeEventNotFound, model.ErrCodeTicketNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyJoined, model.ErrCodeDeletionBlocked:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// sessionUser はセッションミドルウェアが注入したユーザーを返す。
// 主催者判定は主キーの一致のみで行うため、IDだけを持つUserで足りる。
func sessionUser(r *http.Request) (*model.User, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil, false
	}
	return &model.User{ID: userID}, true
}
