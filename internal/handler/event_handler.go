package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/awesome-events/internal/event"
	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/ticket"
	"github.com/hitoshi/awesome-events/internal/validation"
)

// maxEventFormBytes はイベントフォームの最大サイズ。画像の上限にフォーム項目分の余裕を加えたもの。
const maxEventFormBytes = validation.MaxImageByteSize + 1<<20

// localTimeLayout はdatetime-local入力の書式。
const localTimeLayout = "2006-01-02T15:04"

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	Create(ctx context.Context, owner *model.User, in event.Input) (*model.Event, error)
	Update(ctx context.Context, user *model.User, eventID string, in event.Input) (*model.Event, error)
	Delete(ctx context.Context, user *model.User, eventID string) error
	Get(ctx context.Context, eventID string) (*event.Detail, error)
	ListUpcoming(ctx context.Context, limit int) ([]*model.Event, error)
}

// EventHandler はイベント関連のHTTPハンドラー。
type EventHandler struct {
	service  EventServiceInterface
	location *time.Location
}

// NewEventHandler はEventHandlerを生成する。
// locationはタイムゾーンなしの日時入力を解釈する地域。nilの場合はUTC。
func NewEventHandler(service EventServiceInterface, location *time.Location) *EventHandler {
	if location == nil {
		location = time.UTC
	}
	return &EventHandler{service: service, location: location}
}

// eventResponse はイベントのAPIレスポンス。
type eventResponse struct {
	ID          string     `json:"id"`
	OwnerID     *string    `json:"owner_id"`
	Name        string     `json:"name"`
	Place       string     `json:"place"`
	Content     string     `json:"content"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	HasImage    bool       `json:"has_image"`
	CreatedByMe bool       `json:"created_by_me"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// eventDetailResponse はイベント詳細のAPIレスポンス。
type eventDetailResponse struct {
	eventResponse
	ContentHTML  string                `json:"content_html"`
	ImageURL     string                `json:"image_url,omitempty"`
	Joined       bool                  `json:"joined"`
	Participants []participantResponse `json:"participants"`
}

// participantResponse は参加者一覧の1行。
type participantResponse struct {
	TicketID  string  `json:"ticket_id"`
	UserID    *string `json:"user_id"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"image_url,omitempty"`
	Comment   string  `json:"comment"`
	Withdrawn bool    `json:"withdrawn"`
}

func toEventResponse(e *model.Event, viewer *model.User) eventResponse {
	resp := eventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Place:       e.Place,
		Content:     e.Content,
		StartAt:     e.StartAt,
		EndAt:       e.EndAt,
		HasImage:    e.Image != nil,
		CreatedByMe: e.CreatedBy(viewer),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.OwnerID != "" {
		ownerID := e.OwnerID
		resp.OwnerID = &ownerID
	}
	return resp
}

func toParticipantResponses(participants []ticket.Participant) []participantResponse {
	out := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		row := participantResponse{
			TicketID:  p.TicketID,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
			Comment:   p.Comment,
			Withdrawn: p.Withdrawn,
		}
		if p.UserID != "" {
			userID := p.UserID
			row.UserID = &userID
		}
		out = append(out, row)
	}
	return out
}

// ListEvents は開催予定のイベント一覧を返す。
// GET /api/events?limit=N
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError("limitは正の整数で指定してください。"))
			return
		}
		limit = min(n, event.DefaultUpcomingLimit)
	}

	events, err := h.service.ListUpcoming(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	viewer, _ := sessionUser(r)
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e, viewer))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEvent はイベント詳細を参加者一覧付きで返す。
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	viewer, _ := sessionUser(r)
	resp := eventDetailResponse{
		eventResponse: toEventResponse(detail.Event, viewer),
		ContentHTML:   detail.ContentHTML,
		ImageURL:      detail.ImageURL,
		Participants:  toParticipantResponses(ticket.Participants(detail.Tickets)),
	}
	if viewer != nil {
		for _, t := range detail.Tickets {
			if t.UserID == viewer.ID {
				resp.Joined = true
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateEvent はイベントを登録する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	in, apiErr := h.parseEventForm(w, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), owner, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/events/"+created.ID)
	writeJSON(w, http.StatusCreated, toEventResponse(created, owner))
}

// UpdateEvent は主催者によるイベント編集を行う。
// PATCH /api/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	in, apiErr := h.parseEventForm(w, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	updated, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(updated, user))
}

// DeleteEvent は主催者によるイベント削除を行う。
// DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseEventForm はmultipartまたはurlencodedのイベントフォームを読み取る。
// 解釈できない日時は未入力として扱い、検証で「を入力してください」になる。
func (h *EventHandler) parseEventForm(w http.ResponseWriter, r *http.Request) (event.Input, *model.APIError) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventFormBytes)

	var in event.Input
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxEventFormBytes); err != nil {
			return in, formParseError(err)
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return in, formParseError(err)
		}
	default:
		return in, model.NewBadRequestError("multipart/form-data または application/x-www-form-urlencoded で送信してください。")
	}

	in.Name = r.PostFormValue("name")
	in.Place = r.PostFormValue("place")
	in.Content = r.PostFormValue("content")
	in.StartAt = h.parseTime(r.PostFormValue("start_at"))
	in.EndAt = h.parseTime(r.PostFormValue("end_at"))
	in.RemoveImage, _ = strconv.ParseBool(r.PostFormValue("remove_image"))

	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return in, formParseError(err)
		default:
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return in, formParseError(err)
			}
			in.Image = data
		}
	}
	return in, nil
}

// parseTime はRFC 3339またはdatetime-local形式の日時を解釈する。空文字や不正な値はnil。
func (h *EventHandler) parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation(localTimeLayout, raw, h.location); err == nil {
		return &t
	}
	slog.Debug("unparseable event time", slog.String("value", raw))
	return nil
}

func formParseError(err error) *model.APIError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.NewBadRequestError("送信データが大きすぎます。")
	}
	return model.NewBadRequestError("フォームを読み取れませんでした。")
}
