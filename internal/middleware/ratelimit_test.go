package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/awesome-events/internal/model"
	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	return req
}

func TestNewRateLimiterConfig_ConvertsPerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(60, 6)

	if cfg.GeneralRate != rate.Limit(1) || cfg.GeneralBurst != 60 {
		t.Errorf("general = %v/%d, want 1/60", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.EventCreateRate != rate.Limit(0.1) || cfg.EventCreateBurst != 6 {
		t.Errorf("event create = %v/%d, want 0.1/6", cfg.EventCreateRate, cfg.EventCreateBurst)
	}
}

func TestNewRateLimiterConfig_NonPositiveUsesDefaults(t *testing.T) {
	cfg := NewRateLimiterConfig(0, -1)
	def := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != def.GeneralBurst || cfg.EventCreateBurst != def.EventCreateBurst {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, def)
	}
}

func TestGeneralMiddleware_AllowsUpToBurstThenRejects(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:      rate.Limit(1.0 / 60.0),
		GeneralBurst:     3,
		EventCreateRate:  rate.Limit(1),
		EventCreateBurst: 1,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestGeneralMiddleware_UsersAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:      rate.Limit(1.0 / 60.0),
		GeneralBurst:     1,
		EventCreateRate:  rate.Limit(1),
		EventCreateBurst: 1,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for another user", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestEventCreateMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:      rate.Limit(100),
		GeneralBurst:     100,
		EventCreateRate:  rate.Limit(1.0 / 60.0),
		EventCreateBurst: 1,
	})
	create := rl.EventCreateMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	create.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first create: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	create.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second create: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("general: status = %d, want 200", w.Code)
	}
	if rl.EventCreateLimiterCount() != 1 {
		t.Errorf("EventCreateLimiterCount() = %d, want 1", rl.EventCreateLimiterCount())
	}
}

func TestRateLimiter_NoUser_Returns401(t *testing.T) {
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig())

	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, requestAs(""))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:      rate.Limit(1),
		GeneralBurst:     1,
		EventCreateRate:  rate.Limit(1),
		EventCreateBurst: 1,
		CleanupInterval:  time.Minute,
	})
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))
	rl.EventCreateMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))

	rl.cleanup(time.Now().Add(time.Minute))
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("entry evicted too early")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.EventCreateLimiterCount() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.EventCreateLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
