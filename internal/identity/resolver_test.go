package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/awesome-events/internal/clock"
	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/hitoshi/awesome-events/internal/repository"
)

// memoryUserStore は(provider, uid)の一意制約を持つインメモリのUserStore。
type memoryUserStore struct {
	mu    sync.Mutex
	users []*model.User

	// beforeCreate が設定されていればCreateの直前に呼ばれる
	beforeCreate func()
	findErr      error
}

func (s *memoryUserStore) FindByProviderAndUID(_ context.Context, provider, uid string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, u := range s.users {
		if u.Provider == provider && u.UID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryUserStore) Create(_ context.Context, user *model.User) error {
	if s.beforeCreate != nil {
		s.beforeCreate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == user.Provider && u.UID == user.UID {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	s.users = append(s.users, &cp)
	return nil
}

func (s *memoryUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func strPtr(s string) *string {
	return &s
}

// githubAssertion はGitHubでログインしたtesterの認証結果を返す。
func githubAssertion(uid string) Assertion {
	return Assertion{
		Provider: strPtr("github"),
		UID:      strPtr(uid),
		Info: Info{
			Nickname: strPtr("tester"),
			Image:    strPtr("https://example.com/12345.jpg"),
		},
	}
}

func newResolver(store *memoryUserStore) *Resolver {
	return NewResolver(store, clock.NewFixed(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), nil)
}

func TestResolveOrCreate_NewUser(t *testing.T) {
	store := &memoryUserStore{}
	r := newResolver(store)

	user, err := r.ResolveOrCreate(context.Background(), githubAssertion("12345"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.ID == "" {
		t.Error("expected user ID to be assigned")
	}
	if user.Provider != "github" || user.UID != "12345" {
		t.Errorf("provider/uid = %s/%s, want github/12345", user.Provider, user.UID)
	}
	if user.Name != "tester" {
		t.Errorf("Name = %q, want nickname %q", user.Name, "tester")
	}
	if user.ImageURL != "https://example.com/12345.jpg" {
		t.Errorf("ImageURL = %q", user.ImageURL)
	}
	if store.count() != 1 {
		t.Errorf("user count = %d, want 1", store.count())
	}
}

// 同じ(provider, uid)で2回呼んでも同じユーザーが返り、作成は1件のみであること
func TestResolveOrCreate_Idempotent(t *testing.T) {
	store := &memoryUserStore{}
	r := newResolver(store)

	first, err := r.ResolveOrCreate(context.Background(), githubAssertion("12345"))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := r.ResolveOrCreate(context.Background(), githubAssertion("12345"))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("IDs differ: %s != %s", first.ID, second.ID)
	}
	if store.count() != 1 {
		t.Errorf("user count = %d, want 1", store.count())
	}
}

// 既存ユーザーはassertionのプロフィールで上書きされないこと
func TestResolveOrCreate_ExistingUserIsNotOverwritten(t *testing.T) {
	store := &memoryUserStore{}
	r := newResolver(store)

	if _, err := r.ResolveOrCreate(context.Background(), githubAssertion("12345")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	changed := githubAssertion("12345")
	changed.Info.Nickname = strPtr("renamed")
	changed.Info.Image = nil

	user, err := r.ResolveOrCreate(context.Background(), changed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "tester" {
		t.Errorf("Name = %q, want unchanged %q", user.Name, "tester")
	}
}

func TestResolveOrCreate_MissingFieldIsConstraintViolation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Assertion)
		column string
	}{
		{"providerがない", func(a *Assertion) { a.Provider = nil }, "provider"},
		{"uidがない", func(a *Assertion) { a.UID = nil }, "uid"},
		{"nicknameがない", func(a *Assertion) { a.Info.Nickname = nil }, "name"},
		{"imageがない", func(a *Assertion) { a.Info.Image = nil }, "image_url"},
		{"nicknameが空文字", func(a *Assertion) { a.Info.Nickname = strPtr("") }, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryUserStore{}
			r := newResolver(store)

			a := githubAssertion("12345")
			tt.mutate(&a)

			user, err := r.ResolveOrCreate(context.Background(), a)
			if user != nil {
				t.Errorf("expected nil user, got %+v", user)
			}
			if !errors.Is(err, model.ErrConstraintViolation) {
				t.Fatalf("expected constraint violation, got %v", err)
			}
			var cv *model.ConstraintViolationError
			if !errors.As(err, &cv) || cv.Column != tt.column {
				t.Errorf("violation column = %v, want %q", cv, tt.column)
			}
			if store.count() != 0 {
				t.Errorf("user count = %d, want 0", store.count())
			}
		})
	}
}

// 検索と作成の間に同じidentityのユーザーが作成された場合、先に作成された行を返すこと
func TestResolveOrCreate_DuplicateRaceReturnsWinner(t *testing.T) {
	store := &memoryUserStore{}
	winner := &model.User{
		ID: "winner", Provider: "github", UID: "12345", Name: "tester", ImageURL: "https://example.com/12345.jpg",
	}
	store.beforeCreate = func() {
		store.mu.Lock()
		store.users = append(store.users, winner)
		store.mu.Unlock()
		store.beforeCreate = nil
	}
	r := newResolver(store)

	user, err := r.ResolveOrCreate(context.Background(), githubAssertion("12345"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "winner" {
		t.Errorf("ID = %q, want winner", user.ID)
	}
	if store.count() != 1 {
		t.Errorf("user count = %d, want 1", store.count())
	}
}

func TestResolveOrCreate_FindError(t *testing.T) {
	store := &memoryUserStore{findErr: errors.New("db down")}
	r := newResolver(store)

	if _, err := r.ResolveOrCreate(context.Background(), githubAssertion("12345")); err == nil {
		t.Fatal("expected error")
	}
}
