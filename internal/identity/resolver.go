// Package identity は外部IdPの認証結果からユーザーを特定・作成する。
package identity

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
)

// Assertion は外部IdPから受け取った認証結果。
// 値が送られてこなかった項目はnilになる。
type Assertion struct {
	Provider *string
	UID      *string
	Info     Info
}

// Info はIdPが返すプロフィール情報。
type Info struct {
	Nickname *string
	Image    *string
}

// UserStore はResolverが必要とするユーザー永続化の操作。
type UserStore interface {
	FindByProviderAndUID(ctx context.Context, provider, uid string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// Resolver は(provider, uid)でユーザーを検索し、未登録なら作成する。
type Resolver struct {
	users   UserStore
	clock   clock.Clock
	metrics metrics.MetricsCollector
}

// NewResolver はResolverを生成する。metricsがnilの場合は記録しない。
func NewResolver(users UserStore, clk clock.Clock, mc metrics.MetricsCollector) *Resolver {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Resolver{users: users, clock: clk, metrics: mc}
}

// ResolveOrCreate はassertionに対応するユーザーを返す。
// 既存ユーザーはassertionの内容で上書きせずそのまま返す。
// 新規作成時に必須項目が欠けていれば *model.ConstraintViolationError を返し、何も永続化しない。
func (r *Resolver) ResolveOrCreate(ctx context.Context, a Assertion) (*model.User, error) {
	provider, uid := deref(a.Provider), deref(a.UID)

	if provider != "" && uid != "" {
		existing, err := r.users.FindByProviderAndUID(ctx, provider, uid)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := r.clock.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Provider:  provider,
		UID:       uid,
		Name:      deref(a.Info.Nickname),
		ImageURL:  deref(a.Info.Image),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := checkRequired(user); err != nil {
		return nil, err
	}

	err := r.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		// 同じidentityの並行ログインで先に作成された行を返す
		winner, findErr := r.users.FindByProviderAndUID(ctx, provider, uid)
		if findErr != nil {
			return nil, fmt.Errorf("failed to find user after duplicate: %w", findErr)
		}
		if winner != nil {
			return winner, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.metrics.RecordUserCreated(provider)
	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)
	return user, nil
}

// checkRequired は作成前に必須項目の欠落を検出する。
func checkRequired(u *model.User) error {
	required := []struct {
		column string
		value  string
	}{
		{"provider", u.Provider},
		{"uid", u.UID},
		{"name", u.Name},
		{"image_url", u.ImageURL},
	}
	for _, f := range required {
		if f.value == "" {
			return &model.ConstraintViolationError{Table: "users", Column: f.column}
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
