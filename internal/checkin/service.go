// Package checkin は気分チェックインとジャーナルの記録を扱う。
package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/moodlens/internal/metrics"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/repository"
	"github.com/hitoshi/moodlens/internal/scale"
	"github.com/hitoshi/moodlens/internal/security"
)

// JournalSearchLimit はジャーナル検索の最大件数。
const JournalSearchLimit = 100

// チェックイン種別（メトリクスラベル）
const (
	KindMood    = "mood"
	KindJournal = "journal"
)

// MoodInput は気分チェックインの入力。
// ScoreとIntensityは未指定や数値以外の場合NaNとし、中央値として扱われる。
type MoodInput struct {
	Date      string // YYYY-MM-DD。空なら今日
	Score     float64
	Intensity float64
	Tags      []string
	Note      string
}

// JournalInput はジャーナルエントリーの入力。
type JournalInput struct {
	Date   string // YYYY-MM-DD。空なら今日
	Text   string
	Prompt string
}

// CacheInvalidator は記録後にレポートキャッシュを無効化する。
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, userID string) error
}

// Service はチェックインのサービス層。
type Service struct {
	moods       repository.MoodRepository
	journals    repository.JournalRepository
	sanitizer   security.TextSanitizer
	invalidator CacheInvalidator
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	loc         *time.Location
	now         func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithInvalidator はキャッシュ無効化先を設定する。
func WithInvalidator(inv CacheInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLocation は日付省略時の「今日」を決めるロケーションを設定する。
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	moods repository.MoodRepository,
	journals repository.JournalRepository,
	sanitizer security.TextSanitizer,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		moods:     moods,
		journals:  journals,
		sanitizer: sanitizer,
		logger:    logger,
		loc:       time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseScore はJSONなどから得た値を数値に変換する。
// 数値と数値文字列以外はNaNを返す。
func ParseScore(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// RecordMood は気分チェックインを正規化して記録する。同じ日の記録は上書きされる。
// スコアは正規スケールとして受け取り、旧スケールの変換は保存済みの値の読み込み時にのみ行う。
// 日付が解釈できない場合は*model.MalformedSampleErrorを返す。
func (s *Service) RecordMood(ctx context.Context, userID string, in MoodInput) (*model.MoodSample, error) {
	day, err := s.resolveDay(in.Date)
	if err != nil {
		return nil, err
	}

	sample := &model.MoodSample{
		UserID:    userID,
		Date:      day,
		MoodScore: scale.Canonical(in.Score),
		Intensity: scale.ClampIntensity(in.Intensity),
		Tags:      scale.NormalizeTags(in.Tags),
		Note:      s.sanitize(in.Note),
	}
	if err := s.moods.Upsert(ctx, sample); err != nil {
		return nil, fmt.Errorf("チェックインの保存に失敗しました: %w", err)
	}

	s.afterRecord(ctx, userID, KindMood)
	return sample, nil
}

// RecordJournal はジャーナルエントリーを記録する。
// 本文がサニタイズ後に空なら空本文エラーを返す。
func (s *Service) RecordJournal(ctx context.Context, userID string, in JournalInput) (*model.JournalSample, error) {
	text := s.sanitize(in.Text)
	if text == "" {
		return nil, model.NewEmptyJournalTextError()
	}

	day, err := s.resolveDay(in.Date)
	if err != nil {
		return nil, err
	}

	entry := &model.JournalSample{
		UserID: userID,
		Date:   day,
		Text:   text,
		Prompt: s.sanitize(in.Prompt),
	}
	if err := s.journals.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("ジャーナルの保存に失敗しました: %w", err)
	}

	s.afterRecord(ctx, userID, KindJournal)
	return entry, nil
}

// ListMoods は今日を含むdays日間のチェックインを日付昇順で返す。
func (s *Service) ListMoods(ctx context.Context, userID string, days int) ([]model.MoodSample, error) {
	if days < 1 {
		days = 1
	}
	today := model.Today(s.now(), s.loc)
	moods, err := s.moods.ListByUserAndRange(ctx, userID, today.AddDate(0, 0, -(days-1)), today)
	if err != nil {
		return nil, fmt.Errorf("チェックインの取得に失敗しました: %w", err)
	}
	return moods, nil
}

// ListJournal は本文またはプロンプトにqueryを含むエントリーを新しい順に返す。
func (s *Service) ListJournal(ctx context.Context, userID, query string) ([]model.JournalSample, error) {
	entries, err := s.journals.Search(ctx, userID, query, JournalSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("ジャーナルの検索に失敗しました: %w", err)
	}
	return entries, nil
}

// GetJournal はユーザーのエントリーを1件返す。
func (s *Service) GetJournal(ctx context.Context, userID, id string) (*model.JournalSample, error) {
	entry, err := s.journals.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("ジャーナルの取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewJournalNotFoundError(id)
	}
	return entry, nil
}

func (s *Service) resolveDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Today(s.now(), s.loc), nil
	}
	return model.ParseDay(raw)
}

func (s *Service) sanitize(text string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(text)
	}
	return s.sanitizer.Sanitize(text)
}

func (s *Service) afterRecord(ctx context.Context, userID, kind string) {
	if s.metrics != nil {
		s.metrics.RecordCheckIn(kind)
	}
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateCache(ctx, userID); err != nil {
		s.logger.Warn("レポートキャッシュの無効化に失敗",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
