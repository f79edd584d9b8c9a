// Package insight は気分とジャーナルの記録からインサイトレポートを組み立てる。
//
// 読み込み、ウィンドウ構築、特徴量抽出、カード生成、出所の選択、装飾を順に行う。
// 分析そのものはwindow、analysis、synthの純粋関数が担い、このパッケージは入出力と調停だけを持つ。
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/moodlens/internal/analysis"
	"github.com/hitoshi/moodlens/internal/cache"
	"github.com/hitoshi/moodlens/internal/metrics"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/repository"
	"github.com/hitoshi/moodlens/internal/synth"
	"github.com/hitoshi/moodlens/internal/window"
)

// sourceCache はキャッシュから返したレポートのメトリクスラベル。
const sourceCache = "cache"

// Service はインサイトレポートのサービス層。
type Service struct {
	moods    repository.MoodRepository
	journals repository.JournalRepository
	insights repository.InsightRepository
	cache    cache.ReportCache
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithCache はレポートキャッシュを設定する。
func WithCache(c cache.ReportCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLocation は「今日」を決めるロケーションを設定する。
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithTimeout は読み込みから保存までを包むタイムアウトを設定する。0以下なら設定しない。
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	moods repository.MoodRepository,
	journals repository.JournalRepository,
	insights repository.InsightRepository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		moods:    moods,
		journals: journals,
		insights: insights,
		cache:    cache.Noop{},
		logger:   logger,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// analysisResult は1回の分析の中間結果。
type analysisResult struct {
	window   *window.Window
	features analysis.Features
	local    []model.InsightCard
}

// Report はユーザーのインサイトレポートを返す。
// 保存済みのカードがあればそれを、なければその場で生成したカードを使う。
// データが少なくてもエラーにはならない。
func (s *Service) Report(ctx context.Context, userID string, days int) (*Report, error) {
	days = ClampRange(days)
	start := s.now()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lookup, err := s.cache.Lookup(ctx, userID, days)
	if err != nil {
		s.logger.Warn("レポートキャッシュの参照に失敗",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if lookup.Hit {
		var cached Report
		if err := json.Unmarshal(lookup.Data, &cached); err == nil {
			s.recordReport(sourceCache, len(cached.Cards), start)
			return &cached, nil
		}
		s.logger.Warn("キャッシュされたレポートの復元に失敗", slog.String("user_id", userID))
	}

	res, err := s.analyze(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	persisted, err := s.insights.ListByUserAndRange(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("保存済みインサイトの取得に失敗しました: %w", err)
	}

	chosen, src := synth.SelectSource(persisted, res.local)
	report := s.buildReport(res, days, chosen, src)
	report.Persisted = src == synth.SourcePersisted

	s.storeCache(ctx, userID, days, lookup.Version, report)
	s.recordReport(string(src), len(report.Cards), start)

	s.logger.Debug("インサイトレポートを生成",
		slog.String("user_id", userID),
		slog.Int("range_days", days),
		slog.Int("cards", len(report.Cards)),
		slog.String("source", string(src)),
	)
	return report, nil
}

// Regenerate は最新のデータからカードを生成し直し、保存済みの集合を丸ごと置き換える。
// 置換に失敗した場合も生成したレポートを返し、エラーとして*model.PersistenceErrorを返す。
func (s *Service) Regenerate(ctx context.Context, userID string, days int) (*Report, error) {
	days = ClampRange(days)
	start := s.now()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.analyze(ctx, userID, days)
	if err != nil {
		s.recordRegenerate(metrics.RegenerateError)
		return nil, err
	}

	fresh, _ := synth.SelectSource(nil, res.local)

	if err := s.insights.ReplaceInsights(ctx, userID, days, fresh); err != nil {
		perr := &model.PersistenceError{Op: "replace_insights", Err: err}
		s.logger.Error("インサイトの置換保存に失敗",
			slog.String("user_id", userID),
			slog.Int("range_days", days),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordPersistFailure()
		}
		s.recordRegenerate(metrics.RegeneratePersistFail)

		report := s.buildReport(res, days, fresh, synth.SourceLocal)
		s.recordReport(string(synth.SourceLocal), len(report.Cards), start)
		return report, perr
	}

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("レポートキャッシュの無効化に失敗",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	report := s.buildReport(res, days, fresh, synth.SourcePersisted)
	report.Persisted = true
	s.recordRegenerate(metrics.RegenerateSuccess)
	s.recordReport(string(synth.SourcePersisted), len(report.Cards), start)

	s.logger.Info("インサイトを再生成",
		slog.String("user_id", userID),
		slog.Int("range_days", days),
		slog.Int("cards", len(report.Cards)),
	)
	return report, nil
}

// InvalidateCache はユーザーのレポートキャッシュを無効化する。チェックイン記録後に呼ばれる。
func (s *Service) InvalidateCache(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

// IsPersistenceError はerrが置換保存の失敗かを返す。
func IsPersistenceError(err error) bool {
	var perr *model.PersistenceError
	return errors.As(err, &perr)
}

func (s *Service) analyze(ctx context.Context, userID string, days int) (*analysisResult, error) {
	today := model.Today(s.now(), s.loc)
	from := today.AddDate(0, 0, -(days - 1))

	moods, err := s.moods.ListByUserAndRange(ctx, userID, from, today)
	if err != nil {
		return nil, fmt.Errorf("チェックインの取得に失敗しました: %w", err)
	}
	journals, err := s.journals.ListByUserAndRange(ctx, userID, from, today)
	if err != nil {
		return nil, fmt.Errorf("ジャーナルの取得に失敗しました: %w", err)
	}

	w := window.Build(moods, today, days)
	f := analysis.Extract(w, journals)
	return &analysisResult{
		window:   w,
		features: f,
		local:    synth.Local(f),
	}, nil
}

func (s *Service) buildReport(res *analysisResult, days int, chosen []model.InsightCard, src synth.Source) *Report {
	checkIns := res.window.RealCount()
	cards := synth.Enrich(chosen, synth.EnrichInput{
		CheckIns:   checkIns,
		RangeDays:  days,
		Variance:   res.features.Variance,
		Journaling: res.features.Journaling,
	})
	return &Report{
		RangeDays:   days,
		CheckIns:    checkIns,
		IsSample:    res.window.IsSample(),
		Confidence:  synth.ConfidenceFor(checkIns),
		Uncertainty: synth.Uncertainty(checkIns),
		Source:      src,
		Cards:       cards,
		Stats:       newStats(res.features),
		GeneratedAt: s.now().UTC(),
	}
}

func (s *Service) storeCache(ctx context.Context, userID string, days int, version int64, report *Report) {
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Store(ctx, userID, days, version, data); err != nil {
		s.logger.Warn("レポートキャッシュの保存に失敗",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) recordReport(source string, cards int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordInsightReport(source)
	s.metrics.RecordCardsEmitted(cards)
	s.metrics.RecordInsightLatency(s.now().Sub(start))
}

func (s *Service) recordRegenerate(result string) {
	if s.metrics != nil {
		s.metrics.RecordRegenerate(result)
	}
}
