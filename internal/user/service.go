// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/awesome-events/internal/clock"
	"github.com/hitoshi/awesome-events/internal/metrics"
	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/repository"
)

// 退会がブロックされた理由。レコード全体（base）に対するエラーとして表示する。
const (
	ReasonOwnedEventPending     = "公開中の未終了イベントが存在します。"
	ReasonAttendingEventPending = "未終了の参加イベントが存在します。"
)

// EventFinder は退会判定で参照するイベント一覧の取得インターフェース。
type EventFinder interface {
	ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Event, error)
	ListByParticipantID(ctx context.Context, userID string) ([]*model.Event, error)
}

// DeletionResult は退会判定の結果。
// Deleted が false の場合、Reason にブロック理由が入る。ブロックはエラーではない。
type DeletionResult struct {
	Deleted bool
	Reason  string
}

// Blocked は退会がブロックされたかを返す。
func (r DeletionResult) Blocked() bool {
	return !r.Deleted
}

// APIError はブロック理由をbaseフィールドに載せたAPIErrorを返す。削除済みの場合はnil。
func (r DeletionResult) APIError() *model.APIError {
	if r.Deleted {
		return nil
	}
	return model.NewDeletionBlockedError(r.Reason)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	events      EventFinder
	clock       clock.Clock
	metrics     metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	events EventFinder,
	clk clock.Clock,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		events:      events,
		clock:       clk,
		metrics:     mc,
	}
}

// Withdraw は現在時刻で退会判定を行い、可能であればユーザーを削除する。
func (s *Service) Withdraw(ctx context.Context, userID string) (DeletionResult, error) {
	return s.AttemptDelete(ctx, userID, s.clock.Now())
}

// AttemptDelete はnow時点で退会可能かを判定し、可能であればユーザーを削除する。
//
// 主催イベントに未終了のものがあれば ReasonOwnedEventPending、
// 参加イベントに未終了のものがあれば ReasonAttendingEventPending でブロックする。
// 両方に該当する場合は主催イベントの理由を優先する。
// 削除時はセッションを削除し、主催イベントと参加登録はユーザーから切り離される。
func (s *Service) AttemptDelete(ctx context.Context, userID string, now time.Time) (DeletionResult, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return DeletionResult{}, model.NewUserNotFoundError()
	}

	owned, err := s.events.ListByOwnerID(ctx, userID)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("主催イベントの取得に失敗しました: %w", err)
	}
	if hasPending(owned, now) {
		return s.block(userID, ReasonOwnedEventPending, metrics.DeletionBlockedOwned), nil
	}

	attending, err := s.events.ListByParticipantID(ctx, userID)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("参加イベントの取得に失敗しました: %w", err)
	}
	if hasPending(attending, now) {
		return s.block(userID, ReasonAttendingEventPending, metrics.DeletionBlockedAttending), nil
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return DeletionResult{}, fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return DeletionResult{}, fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	s.metrics.RecordDeletionOutcome(metrics.DeletionDeleted)
	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return DeletionResult{Deleted: true}, nil
}

func (s *Service) block(userID, reason, outcome string) DeletionResult {
	s.metrics.RecordDeletionOutcome(outcome)
	slog.Info("退会をブロックしました",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
	return DeletionResult{Reason: reason}
}

// hasPending はnow時点で終了していないイベントが1件でもあるかを返す。
func hasPending(events []*model.Event, now time.Time) bool {
	for _, e := range events {
		if !e.IsFinished(now) {
			return true
		}
	}
	return false
}
