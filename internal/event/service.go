// Package event はイベントの登録・編集・削除・閲覧のドメインロジックを提供する。
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/awesome-events/internal/asset"
	"github.com/hitoshi/awesome-events/internal/clock"
	"github.com/hitoshi/awesome-events/internal/metrics"
	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/repository"
	"github.com/hitoshi/awesome-events/internal/storage"
	"github.com/hitoshi/awesome-events/internal/validation"
)

// DefaultUpcomingLimit は開催予定一覧の既定の取得件数。
const DefaultUpcomingLimit = 100

// ContentFormatter はイベント内容を表示用HTMLに整形するインターフェース。
type ContentFormatter interface {
	Format(text string) string
}

// Input はイベント登録・編集フォームの入力値。
type Input struct {
	Name    string
	Place   string
	Content string
	StartAt *time.Time
	EndAt   *time.Time

	// Image は添付画像の生データ。画像を送信しなかった場合はnil。
	Image []byte
	// RemoveImage は編集時に既存画像を外す指定。Imageが送信された場合は無視する。
	RemoveImage bool
}

// Detail はイベント詳細画面の表示内容。
type Detail struct {
	Event       *model.Event
	ContentHTML string
	ImageURL    string
	Tickets     []*model.Ticket
}

// Service はイベントのサービス層。
type Service struct {
	events    repository.EventRepository
	tickets   repository.TicketRepository
	images    storage.ImageStore
	formatter ContentFormatter
	clock     clock.Clock
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。
// imagesがnilの場合、画像付きの登録・編集はIMAGE_STORAGE_DISABLEDエラーになる。
func NewService(
	events repository.EventRepository,
	tickets repository.TicketRepository,
	images storage.ImageStore,
	formatter ContentFormatter,
	clk clock.Clock,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		events:    events,
		tickets:   tickets,
		images:    images,
		formatter: formatter,
		clock:     clk,
		metrics:   mc,
	}
}

// Create はownerを主催者としてイベントを登録する。
// 検証エラーの場合はVALIDATION_FAILEDの*model.APIErrorを返し、何も保存しない。
func (s *Service) Create(ctx context.Context, owner *model.User, in Input) (*model.Event, error) {
	if owner == nil {
		return nil, model.NewUserNotFoundError()
	}

	now := s.clock.Now()
	event := &model.Event{
		ID:        uuid.New().String(),
		OwnerID:   owner.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(event)

	upload, err := s.prepareImage(in.Image)
	if err != nil {
		return nil, err
	}
	if upload != nil {
		event.Image = upload
	}

	if errs := validation.ValidateEvent(event); !errs.Empty() {
		s.metrics.RecordValidationFailure("event", errs.Fields())
		return nil, errs.APIError()
	}

	if upload != nil {
		if err := s.storeImage(ctx, event.ID, upload, in.Image); err != nil {
			return nil, err
		}
	}

	if err := s.events.Create(ctx, event); err != nil {
		if upload != nil {
			s.discardImage(ctx, upload.Key)
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slog.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("owner_id", owner.ID),
	)
	return event, nil
}

// Update は主催者によるイベントの編集を行う。
// 画像が差し替え・削除された場合、旧画像はストレージから削除する。
func (s *Service) Update(ctx context.Context, user *model.User, eventID string, in Input) (*model.Event, error) {
	event, err := s.findOwned(ctx, user, eventID)
	if err != nil {
		return nil, err
	}

	previous := event.Image
	in.apply(event)
	event.UpdatedAt = s.clock.Now()

	upload, err := s.prepareImage(in.Image)
	if err != nil {
		return nil, err
	}
	switch {
	case upload != nil:
		event.Image = upload
	case in.RemoveImage:
		event.Image = nil
	}

	if errs := validation.ValidateEvent(event); !errs.Empty() {
		s.metrics.RecordValidationFailure("event", errs.Fields())
		return nil, errs.APIError()
	}

	if upload != nil {
		if err := s.storeImage(ctx, event.ID, upload, in.Image); err != nil {
			return nil, err
		}
	}

	if err := s.events.Update(ctx, event); err != nil {
		if upload != nil {
			s.discardImage(ctx, upload.Key)
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if previous != nil && (event.Image == nil || event.Image.Key != previous.Key) {
		s.discardImage(ctx, previous.Key)
	}

	slog.Info("event updated", slog.String("event_id", event.ID))
	return event, nil
}

// Delete は主催者によるイベントの削除を行う。参加登録も同時に削除される。
func (s *Service) Delete(ctx context.Context, user *model.User, eventID string) error {
	event, err := s.findOwned(ctx, user, eventID)
	if err != nil {
		return err
	}

	if err := s.events.DeleteByID(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if event.Image != nil {
		s.discardImage(ctx, event.Image.Key)
	}

	slog.Info("event deleted", slog.String("event_id", event.ID))
	return nil
}

// Get はイベント詳細を参加者一覧付きで返す。
func (s *Service) Get(ctx context.Context, eventID string) (*Detail, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}

	tickets, err := s.tickets.ListByEventID(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	detail := &Detail{Event: event, Tickets: tickets, ContentHTML: event.Content}
	if s.formatter != nil {
		detail.ContentHTML = s.formatter.Format(event.Content)
	}
	if event.Image != nil && s.images != nil {
		url, err := s.images.URL(ctx, event.Image.Key)
		if err != nil {
			// 画像URLが発行できなくても詳細は表示する
			slog.Warn("failed to presign event image",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
		} else {
			detail.ImageURL = url
		}
	}
	return detail, nil
}

// ListUpcoming は現在時刻の時点で終了していないイベントを開始時刻順に返す。
func (s *Service) ListUpcoming(ctx context.Context, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	events, err := s.events.ListUpcoming(ctx, s.clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return events, nil
}

// findOwned はイベントを取得し、userが主催者であることを確認する。
func (s *Service) findOwned(ctx context.Context, user *model.User, eventID string) (*model.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}
	if !event.CreatedBy(user) {
		return nil, model.NewNotEventOwnerError()
	}
	return event, nil
}

// prepareImage は画像データから属性を抽出する。画像が送信されていなければnilを返す。
func (s *Service) prepareImage(data []byte) (*model.ImageAsset, error) {
	if data == nil {
		return nil, nil
	}
	if s.images == nil {
		return nil, model.NewImageStorageDisabledError()
	}
	if len(data) == 0 {
		return nil, model.NewInvalidImageError()
	}
	return asset.Inspect(data), nil
}

// storeImage は検証済みの画像を events/<event-id>/<uuid> に保存し、img.Keyを設定する。
func (s *Service) storeImage(ctx context.Context, eventID string, img *model.ImageAsset, data []byte) error {
	key := fmt.Sprintf("events/%s/%s", eventID, uuid.New().String())
	if err := s.images.Put(ctx, key, img.ContentType, data); err != nil {
		return fmt.Errorf("failed to store event image: %w", err)
	}
	img.Key = key
	return nil
}

// discardImage は不要になった画像を削除する。失敗はログのみ。
func (s *Service) discardImage(ctx context.Context, key string) {
	if s.images == nil || key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete event image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (in Input) apply(e *model.Event) {
	e.Name = in.Name
	e.Place = in.Place
	e.Content = in.Content
	e.StartAt = in.StartAt
	e.EndAt = in.EndAt
}
