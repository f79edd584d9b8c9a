package regenerate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/model"
)

// --- モック定義 ---

type mockUserLister struct {
	listFn func(ctx context.Context, since time.Time) ([]string, error)
}

func (m *mockUserLister) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	return m.listFn(ctx, since)
}

type mockRegenerator struct {
	regenerateFn func(ctx context.Context, userID string, days int) (*insight.Report, error)
}

func (m *mockRegenerator) Regenerate(ctx context.Context, userID string, days int) (*insight.Report, error) {
	return m.regenerateFn(ctx, userID, days)
}

func staticUsers(ids ...string) *mockUserLister {
	return &mockUserLister{listFn: func(ctx context.Context, since time.Time) ([]string, error) {
		return ids, nil
	}}
}

func newTestJob(users ActiveUserLister, regen Regenerator, cfg Config) (*Job, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	job := NewJob(users, regen, logger, cfg)
	job.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return job, &buf
}

// --- テスト ---

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{3, 1600 * time.Millisecond},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.failures); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestNewJob_Defaults(t *testing.T) {
	job := NewJob(staticUsers(), &mockRegenerator{}, nil, Config{RangeDays: 1000})
	if job.cfg.RangeDays != 365 {
		t.Errorf("RangeDays = %d, want clamp to 365", job.cfg.RangeDays)
	}
	if job.cfg.MaxConcurrency != 4 || job.cfg.ActiveUserDays != 30 || job.cfg.MaxAttempts != 3 {
		t.Errorf("cfg = %+v", job.cfg)
	}
}

func TestJob_RunOnce_ActiveSinceWindow(t *testing.T) {
	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	var gotSince time.Time
	users := &mockUserLister{listFn: func(ctx context.Context, since time.Time) ([]string, error) {
		gotSince = since
		return nil, nil
	}}
	job, _ := newTestJob(users, &mockRegenerator{}, Config{ActiveUserDays: 14})
	job.now = func() time.Time { return now }

	res, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Users != 0 {
		t.Errorf("users = %d", res.Users)
	}
	if want := now.AddDate(0, 0, -14); !gotSince.Equal(want) {
		t.Errorf("since = %v, want %v", gotSince, want)
	}
}

func TestJob_RunOnce_Outcomes(t *testing.T) {
	var attempts sync.Map
	regen := &mockRegenerator{regenerateFn: func(ctx context.Context, userID string, days int) (*insight.Report, error) {
		if days != 30 {
			t.Errorf("days = %d", days)
		}
		n, _ := attempts.LoadOrStore(userID, new(int32))
		count := atomic.AddInt32(n.(*int32), 1)
		switch userID {
		case "ok":
			return &insight.Report{}, nil
		case "flaky":
			if count < 2 {
				return &insight.Report{}, &model.PersistenceError{Op: "replace_insights", Err: errors.New("deadlock")}
			}
			return &insight.Report{}, nil
		case "down":
			return &insight.Report{}, &model.PersistenceError{Op: "replace_insights", Err: errors.New("down")}
		default:
			return nil, errors.New("read failed")
		}
	}}

	job, _ := newTestJob(staticUsers("ok", "flaky", "down", "broken"), regen, Config{RangeDays: 30})
	res, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := Result{Users: 4, Succeeded: 2, PersistFailed: 1, Failed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	count := func(id string) int32 {
		v, _ := attempts.Load(id)
		return atomic.LoadInt32(v.(*int32))
	}
	if count("flaky") != 2 {
		t.Errorf("flaky attempts = %d, want 2", count("flaky"))
	}
	if count("down") != 3 {
		t.Errorf("down attempts = %d, want 3", count("down"))
	}
	if count("broken") != 1 {
		t.Errorf("read failures should not be retried, got %d", count("broken"))
	}
}

func TestJob_RunOnce_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	regen := &mockRegenerator{regenerateFn: func(ctx context.Context, userID string, days int) (*insight.Report, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &insight.Report{}, nil
	}}

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	job, _ := newTestJob(staticUsers(ids...), regen, Config{MaxConcurrency: 3})

	res, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Succeeded != 20 {
		t.Errorf("succeeded = %d, want 20", res.Succeeded)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestJob_RunOnce_ListError(t *testing.T) {
	users := &mockUserLister{listFn: func(ctx context.Context, since time.Time) ([]string, error) {
		return nil, errors.New("db down")
	}}
	job, _ := newTestJob(users, &mockRegenerator{}, Config{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJob_RunOnce_CanceledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	regen := &mockRegenerator{regenerateFn: func(ctx context.Context, userID string, days int) (*insight.Report, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return &insight.Report{}, nil
	}}
	job, _ := newTestJob(staticUsers("a", "b", "c", "d"), regen, Config{MaxConcurrency: 1})

	_, err := job.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := atomic.LoadInt32(&calls); got >= 4 {
		t.Errorf("calls = %d, dispatch should stop after cancel", got)
	}
}
