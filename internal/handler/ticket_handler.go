package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/ticket"
)

const maxTicketBodyBytes = 4 << 10

// TicketServiceInterface は参加登録ハンドラーが必要とするサービスインターフェース。
type TicketServiceInterface interface {
	Join(ctx context.Context, user *model.User, eventID, comment string) (*model.Ticket, error)
	Cancel(ctx context.Context, user *model.User, eventID string) error
	ListByEvent(ctx context.Context, eventID string) ([]ticket.Participant, error)
}

// TicketHandler は参加登録関連のHTTPハンドラー。
type TicketHandler struct {
	service TicketServiceInterface
}

// NewTicketHandler はTicketHandlerを生成する。
func NewTicketHandler(service TicketServiceInterface) *TicketHandler {
	return &TicketHandler{service: service}
}

type joinRequest struct {
	Comment string `json:"comment"`
}

type ticketResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Join はイベントへの参加登録を行う。
// POST /api/events/{id}/tickets
func (h *TicketHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req joinRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTicketBodyBytes))
	// コメントなしの参加は空ボディでも受け付ける
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError("リクエストボディが不正です。"))
		return
	}

	t, err := h.service.Join(r.Context(), user, chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ticketResponse{
		ID:        t.ID,
		EventID:   t.EventID,
		UserID:    t.UserID,
		Comment:   t.Comment,
		CreatedAt: t.CreatedAt,
	})
}

// Cancel は自分の参加登録を取り消す。
// DELETE /api/events/{id}/tickets
func (h *TicketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Cancel(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListParticipants はイベントの参加者一覧を返す。
// GET /api/events/{id}/tickets
func (h *TicketHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.ListByEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantResponses(participants))
}
