package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw は退会判定を行い、可能であればユーザーを削除する。
	Withdraw(ctx context.Context, userID string) (user.DeletionResult, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	auth    *AuthHandler
}

// NewUserHandler はUserHandlerを生成する。authは退会後のセッションCookie削除に使う。
func NewUserHandler(service UserServiceInterface, auth *AuthHandler) *UserHandler {
	return &UserHandler{service: service, auth: auth}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
// 未終了の主催イベントまたは参加イベントがある場合は409と理由を返す。
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	u, ok := sessionUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.Withdraw(r.Context(), u.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if result.Blocked() {
		writeAPIErrorResponse(w, http.StatusConflict, result.APIError())
		return
	}

	if h.auth != nil {
		h.auth.clearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
