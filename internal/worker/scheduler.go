// Package worker はバックグラウンドジョブのスケジューリングを提供する。
// 各ジョブはcron式で登録し、同じジョブの実行は重ならないようにする。
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job はスケジューラから実行される処理。
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc は関数をJobとして扱うためのアダプタ。
type JobFunc func(ctx context.Context) error

// Run はf(ctx)を呼び出す。
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler はcron式でジョブを起動する。
type Scheduler struct {
	cron   *rcron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]rcron.EntryID
}

// NewScheduler はSchedulerを生成する。cron式は分単位の5フィールド形式。
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    rcron.New(rcron.WithChain(rcron.SkipIfStillRunning(rcron.DiscardLogger))),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]rcron.EntryID),
	}
}

// Add はジョブをcron式で登録する。同名のジョブは登録できない。
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q is already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.runJob(name, job) })
	if err != nil {
		return fmt.Errorf("invalid schedule for job %q: %w", name, err)
	}
	s.entries[name] = id

	s.logger.Info("ジョブを登録しました",
		slog.String("job", name),
		slog.String("schedule", spec),
	)
	return nil
}

// RunNow は登録済みかどうかに関わらずジョブをctxで即時に1回実行する。
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) {
	s.execute(ctx, name, job)
}

// Next は登録済みジョブの次回実行時刻を返す。
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start はスケジューラを起動し、ctxがキャンセルされるまでブロックする。
// 停止時は実行中のジョブの終了を待つ。
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("スケジューラを開始しました", slog.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("スケジューラを停止しました")
}

func (s *Scheduler) runJob(name string, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.execute(ctx, name, job)
}

func (s *Scheduler) execute(ctx context.Context, name string, job Job) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Info("ジョブを開始します", slog.String("job", name))

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("ジョブがpanicしました",
				slog.String("job", name),
				slog.Any("panic", rec),
			)
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", name),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("ジョブが完了しました",
		slog.String("job", name),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
