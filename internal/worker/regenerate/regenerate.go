// Package regenerate はアクティブユーザーのインサイトを定期的に再生成するジョブを提供する。
// 直近にチェックインのあるユーザーを抽出し、並列数を制御しながら再生成する。
// 置換保存に失敗したユーザーは指数バックオフで再試行する。
package regenerate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/model"
)

// ActiveUserLister は再生成対象ユーザーの抽出インターフェース。
// repository.MoodRepositoryが満たす。
type ActiveUserLister interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Regenerator はインサイト再生成の実行インターフェース。
// insight.Serviceが満たす。
type Regenerator interface {
	Regenerate(ctx context.Context, userID string, days int) (*insight.Report, error)
}

// Config はジョブの設定。
type Config struct {
	RangeDays      int // 再生成する集計期間
	ActiveUserDays int // この日数以内にチェックインしたユーザーを対象にする
	MaxConcurrency int
	MaxAttempts    int // 置換保存失敗時の最大試行回数
}

// Result は1回の実行結果の集計。
type Result struct {
	Users         int
	Succeeded     int
	PersistFailed int
	Failed        int
}

// Job はインサイト再生成ジョブ。
type Job struct {
	users  ActiveUserLister
	regen  Regenerator
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewJob はJobの新しいインスタンスを生成する。
// 未設定の値にはデフォルト（30日、アクティブ判定30日、並列4、試行3回）を使う。
func NewJob(users ActiveUserLister, regen Regenerator, logger *slog.Logger, cfg Config) *Job {
	if cfg.RangeDays <= 0 {
		cfg.RangeDays = 30
	}
	cfg.RangeDays = insight.ClampRange(cfg.RangeDays)
	if cfg.ActiveUserDays <= 0 {
		cfg.ActiveUserDays = 30
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		users:  users,
		regen:  regen,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Run は1サイクル分の再生成を実行する。スケジューラから呼ばれる。
func (j *Job) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce は対象ユーザーを抽出し、semaphoreで並列数を制御しながら再生成する。
// 個々のユーザーの失敗はログに残して集計し、ジョブ全体のエラーにはしない。
func (j *Job) RunOnce(ctx context.Context) (Result, error) {
	start := j.now()
	since := start.AddDate(0, 0, -j.cfg.ActiveUserDays)

	userIDs, err := j.users.ListActiveUserIDs(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("再生成対象ユーザーの取得に失敗しました: %w", err)
	}

	res := Result{Users: len(userIDs)}
	if len(userIDs) == 0 {
		j.logger.Info("再生成対象のユーザーはいません")
		return res, nil
	}

	j.logger.Info("インサイト再生成サイクルを開始します",
		slog.Int("user_count", len(userIDs)),
		slog.Int("range_days", j.cfg.RangeDays),
	)

	var mu sync.Mutex
	sem := make(chan struct{}, j.cfg.MaxConcurrency)
	var wg sync.WaitGroup

dispatch:
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := j.regenerateUser(ctx, userID)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSuccess:
				res.Succeeded++
			case outcomePersistFailed:
				res.PersistFailed++
			default:
				res.Failed++
			}
		}(userID)
	}

	wg.Wait()

	j.logger.Info("インサイト再生成サイクルが完了しました",
		slog.Int("user_count", res.Users),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("persist_failed", res.PersistFailed),
		slog.Int("failed", res.Failed),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)

	return res, ctx.Err()
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomePersistFailed
	outcomeFailed
)

// regenerateUser は1ユーザーを再生成する。置換保存の失敗のみ再試行する。
func (j *Job) regenerateUser(ctx context.Context, userID string) outcome {
	for attempt := 1; ; attempt++ {
		_, err := j.regen.Regenerate(ctx, userID, j.cfg.RangeDays)
		if err == nil {
			return outcomeSuccess
		}

		var perr *model.PersistenceError
		if !errors.As(err, &perr) {
			j.logger.Error("インサイトの再生成に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return outcomeFailed
		}

		if attempt >= j.cfg.MaxAttempts {
			j.logger.Error("インサイトの保存を断念しました",
				slog.String("user_id", userID),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)
			return outcomePersistFailed
		}

		delay := CalculateBackoff(attempt - 1)
		j.logger.Warn("インサイトの保存に失敗したため再試行します",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
		)
		if err := j.sleep(ctx, delay); err != nil {
			return outcomePersistFailed
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
