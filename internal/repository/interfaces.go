// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/awesome-events/internal/model"
)

// ErrDuplicate は一意制約に違反する作成を示す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByProviderAndUID はproviderとuidでユーザーを検索する。見つからない場合はnilを返す。
	FindByProviderAndUID(ctx context.Context, provider, uid string) (*model.User, error)

	// Create はユーザーを作成する。
	// NOT NULL違反は *model.ConstraintViolationError、(provider, uid)の重複は ErrDuplicate を返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 主催イベントのowner_id、参加登録のuser_idはSET NULLされ、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EventRepository はイベントデータの永続化インターフェース。
type EventRepository interface {
	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// Create はイベントを作成する。
	Create(ctx context.Context, event *model.Event) error

	// Update はイベントの内容と画像属性を上書き更新する。
	Update(ctx context.Context, event *model.Event) error

	// DeleteByID は指定IDのイベントを削除する。参加登録はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListUpcoming はend_at > now のイベントを開始時刻の昇順で最大limit件返す。
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Event, error)

	// ListByOwnerID は指定ユーザーが主催する全イベントを返す。
	ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Event, error)

	// ListByParticipantID は指定ユーザーが参加登録している全イベントを返す。
	ListByParticipantID(ctx context.Context, userID string) ([]*model.Event, error)
}

// TicketRepository は参加登録データの永続化インターフェース。
type TicketRepository interface {
	// FindByUserAndEvent はユーザーIDとイベントIDで参加登録を検索する。見つからない場合はnilを返す。
	FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.Ticket, error)

	// Create は参加登録を作成する。同一ユーザー・同一イベントの重複は ErrDuplicate を返す。
	Create(ctx context.Context, ticket *model.Ticket) error

	// DeleteByUserAndEvent は参加登録を削除する。
	DeleteByUserAndEvent(ctx context.Context, userID, eventID string) error

	// ListByEventID はイベントの参加登録を参加者情報付きで登録順に返す。
	ListByEventID(ctx context.Context, eventID string) ([]*model.Ticket, error)
}

// ExpiredSessionPurger は期限切れセッションの一括削除インターフェース。
type ExpiredSessionPurger interface {
	// DeleteExpired はexpires_at <= now のセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
