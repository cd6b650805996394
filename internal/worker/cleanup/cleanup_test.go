package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/awesome-events/internal/clock"
)

// mockPurger はExpiredSessionPurgerのモック実装。
type mockPurger struct {
	mu      sync.Mutex
	calls   []time.Time
	deleted int64
	err     error
}

func (m *mockPurger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.calls = append(m.calls, now)
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recordingMetrics struct {
	purged []int64
}

func (r *recordingMetrics) RecordValidationFailure(string, []string) {}
func (r *recordingMetrics) RecordDeletionOutcome(string)             {}
func (r *recordingMetrics) RecordUserCreated(string)                 {}
func (r *recordingMetrics) RecordTicketCreated()                     {}
func (r *recordingMetrics) RecordHTTPStatus(int)                     {}
func (r *recordingMetrics) RecordRequestLatency(time.Duration)       {}
func (r *recordingMetrics) RecordSessionsPurged(n int64)             { r.purged = append(r.purged, n) }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

var fixedNow = time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC)

func TestCleanupJob_Run_DeletesWithClockTime(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 3}
	mc := &recordingMetrics{}
	job := NewCleanupJob(purger, clock.NewFixed(fixedNow), mc, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(purger.calls) != 1 || !purger.calls[0].Equal(fixedNow) {
		t.Errorf("DeleteExpired calls = %v, want [%v]", purger.calls, fixedNow)
	}
	if len(mc.purged) != 1 || mc.purged[0] != 3 {
		t.Errorf("RecordSessionsPurged = %v, want [3]", mc.purged)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{deleted: 42}, clock.NewFixed(fixedNow), nil, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nlog: %s", err, buf.String())
	}
	if got, ok := entry["deleted_count"].(float64); !ok || got != 42 {
		t.Errorf("deleted_count = %v, want 42", entry["deleted_count"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms in log")
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, clock.NewFixed(fixedNow), nil, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	mc := &recordingMetrics{}
	job := NewCleanupJob(&mockPurger{err: errors.New("connection refused")}, clock.NewFixed(fixedNow), mc, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want wrapped cause", err)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error log, got %s", buf.String())
	}
	if len(mc.purged) != 0 {
		t.Errorf("metrics should not be recorded on failure: %v", mc.purged)
	}
}

func TestCleanupJob_Run_RespectsContext(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, clock.NewFixed(fixedNow), nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, clock.NewFixed(fixedNow), nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for purger.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if purger.callCount() != 1 {
		t.Errorf("calls = %d, want 1 immediately after start", purger.callCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}
