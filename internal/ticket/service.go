// Package ticket はイベントへの参加登録のドメインロジックを提供する。
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/awesome-events/internal/clock"
	"github.com/hitoshi/awesome-events/internal/metrics"
	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/repository"
	"github.com/hitoshi/awesome-events/internal/validation"
)

// WithdrawnUserName は退会済み参加者の表示名。
const WithdrawnUserName = "退会したユーザー"

// EventFinder は参加対象イベントの取得インターフェース。
type EventFinder interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
}

// Service は参加登録のサービス層。
type Service struct {
	tickets repository.TicketRepository
	events  EventFinder
	clock   clock.Clock
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(tickets repository.TicketRepository, events EventFinder, clk clock.Clock, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{tickets: tickets, events: events, clock: clk, metrics: mc}
}

// Join はuserをイベントに参加登録する。
// 1ユーザーにつき1イベント1件までで、2件目はALREADY_JOINEDエラーになる。
func (s *Service) Join(ctx context.Context, user *model.User, eventID, comment string) (*model.Ticket, error) {
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if _, err := s.findEvent(ctx, eventID); err != nil {
		return nil, err
	}

	ticket := &model.Ticket{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		EventID:   eventID,
		Comment:   comment,
		CreatedAt: s.clock.Now(),
	}
	if errs := validation.ValidateTicket(ticket); !errs.Empty() {
		s.metrics.RecordValidationFailure("ticket", errs.Fields())
		return nil, errs.APIError()
	}

	existing, err := s.tickets.FindByUserAndEvent(ctx, user.ID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyJoinedError()
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyJoinedError()
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.metrics.RecordTicketCreated()
	slog.Info("ticket created",
		slog.String("event_id", eventID),
		slog.String("user_id", user.ID),
	)
	return ticket, nil
}

// Cancel はuserの参加登録を取り消す。
func (s *Service) Cancel(ctx context.Context, user *model.User, eventID string) error {
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if _, err := s.findEvent(ctx, eventID); err != nil {
		return err
	}

	existing, err := s.tickets.FindByUserAndEvent(ctx, user.ID, eventID)
	if err != nil {
		return fmt.Errorf("failed to find ticket: %w", err)
	}
	if existing == nil {
		return model.NewTicketNotFoundError()
	}

	if err := s.tickets.DeleteByUserAndEvent(ctx, user.ID, eventID); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}

	slog.Info("ticket canceled",
		slog.String("event_id", eventID),
		slog.String("user_id", user.ID),
	)
	return nil
}

// Participant は参加者一覧の1行。
type Participant struct {
	TicketID  string
	UserID    string // 退会済みの場合は空文字
	Name      string
	ImageURL  string
	Comment   string
	Withdrawn bool
}

// ListByEvent はイベントの参加者を登録順に返す。退会済み参加者は固定の表示名になる。
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]Participant, error) {
	if _, err := s.findEvent(ctx, eventID); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return Participants(tickets), nil
}

// Participants は参加登録を表示用の参加者行に変換する。
func Participants(tickets []*model.Ticket) []Participant {
	out := make([]Participant, 0, len(tickets))
	for _, t := range tickets {
		p := Participant{TicketID: t.ID, Comment: t.Comment}
		if t.User == nil {
			p.Name = WithdrawnUserName
			p.Withdrawn = true
		} else {
			p.UserID = t.User.ID
			p.Name = t.User.Name
			p.ImageURL = t.User.ImageURL
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) findEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}
	return event, nil
}
