package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/awesome-events/internal/clock"
	"github.com/hitoshi/awesome-events/internal/identity"
	"github.com/hitoshi/awesome-events/internal/model"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByProviderAndUID(_ context.Context, _, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, _ string) error {
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*identity.Assertion, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*identity.Assertion, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, errors.New("not implemented")
}

type mockResolver struct {
	resolveFn func(ctx context.Context, a identity.Assertion) (*model.User, error)
}

func (m *mockResolver) ResolveOrCreate(ctx context.Context, a identity.Assertion) (*model.User, error) {
	return m.resolveFn(ctx, a)
}

func strPtr(s string) *string { return &s }

var fixedNow = time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestService(oauth OAuthProvider, resolver IdentityResolver, users *mockUserRepo, sessions *mockSessionRepo) *Service {
	return NewService(oauth, resolver, users, sessions, clock.NewFixed(fixedNow), ServiceConfig{SessionMaxAge: 3600})
}

// --- テストケース ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	oauth := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://github.com/login/oauth/authorize?state=" + state
		},
	}
	svc := newTestService(oauth, nil, &mockUserRepo{}, &mockSessionRepo{})

	got := svc.GetLoginURL("abc")
	if got != "https://github.com/login/oauth/authorize?state=abc" {
		t.Errorf("GetLoginURL() = %q", got)
	}
}

func TestHandleCallback_ResolvesUserAndCreatesSession(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(_ context.Context, code string) (*identity.Assertion, error) {
			if code != "valid-code" {
				t.Errorf("code = %q, want valid-code", code)
			}
			return &identity.Assertion{
				Provider: strPtr("github"),
				UID:      strPtr("12345"),
				Info:     identity.Info{Nickname: strPtr("octocat"), Image: strPtr("https://example.com/a.png")},
			}, nil
		},
	}

	var resolved identity.Assertion
	resolver := &mockResolver{
		resolveFn: func(_ context.Context, a identity.Assertion) (*model.User, error) {
			resolved = a
			return &model.User{ID: "user-1", Provider: "github", UID: "12345"}, nil
		},
	}

	var saved *model.Session
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			saved = s
			return nil
		},
	}

	svc := newTestService(oauth, resolver, &mockUserRepo{}, sessions)

	session, err := svc.HandleCallback(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if *resolved.UID != "12345" {
		t.Errorf("resolver received uid %q", *resolved.UID)
	}
	if saved == nil || saved != session {
		t.Fatal("expected returned session to be persisted")
	}
	if session.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", session.UserID)
	}
	if len(session.ID) != 64 {
		t.Errorf("len(session.ID) = %d, want 64", len(session.ID))
	}
	if !session.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, fixedNow.Add(time.Hour))
	}
}

func TestHandleCallback_OAuthError_ReturnsError(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(_ context.Context, _ string) (*identity.Assertion, error) {
			return nil, errors.New("oauth error")
		},
	}
	resolver := &mockResolver{
		resolveFn: func(_ context.Context, _ identity.Assertion) (*model.User, error) {
			t.Error("resolver must not be called")
			return nil, nil
		},
	}

	svc := newTestService(oauth, resolver, &mockUserRepo{}, &mockSessionRepo{})

	if _, err := svc.HandleCallback(context.Background(), "bad"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleCallback_ConstraintViolation_NoSession(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(_ context.Context, _ string) (*identity.Assertion, error) {
			return &identity.Assertion{Provider: strPtr("github"), UID: strPtr("1")}, nil
		},
	}
	resolver := &mockResolver{
		resolveFn: func(_ context.Context, _ identity.Assertion) (*model.User, error) {
			return nil, &model.ConstraintViolationError{Table: "users", Column: "name"}
		},
	}
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, _ *model.Session) error {
			t.Error("session must not be created")
			return nil
		},
	}

	svc := newTestService(oauth, resolver, &mockUserRepo{}, sessions)

	_, err := svc.HandleCallback(context.Background(), "code")
	if !errors.Is(err, model.ErrConstraintViolation) {
		t.Fatalf("error = %v, want ErrConstraintViolation", err)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	var deleted string
	sessions := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, nil, &mockUserRepo{}, sessions)

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted = %q, want sess-1", deleted)
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(&mockOAuthProvider{}, nil, &mockUserRepo{}, &mockSessionRepo{})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1"}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "octocat"}, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, nil, users, sessions)

	user, err := svc.GetCurrentUser(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want user-1", user.ID)
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	svc := newTestService(&mockOAuthProvider{}, nil, &mockUserRepo{}, &mockSessionRepo{})

	if _, err := svc.GetCurrentUser(context.Background(), "expired"); err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestGetCurrentUser_WithdrawnUser_ReturnsError(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "gone"}, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, nil, &mockUserRepo{}, sessions)

	if _, err := svc.GetCurrentUser(context.Background(), "sess-1"); err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestGetCurrentUser_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(&mockOAuthProvider{}, nil, &mockUserRepo{}, &mockSessionRepo{})

	if _, err := svc.GetCurrentUser(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}
