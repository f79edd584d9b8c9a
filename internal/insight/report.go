package insight

import (
	"math"
	"strconv"
	"time"

	"github.com/hitoshi/moodlens/internal/analysis"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/synth"
)

// 集計期間の上下限（日数）
const (
	MinRangeDays = 7
	MaxRangeDays = 365
)

// ClampRange は集計期間をMinRangeDays..MaxRangeDaysに収める。
func ClampRange(days int) int {
	switch {
	case days < MinRangeDays:
		return MinRangeDays
	case days > MaxRangeDays:
		return MaxRangeDays
	default:
		return days
	}
}

// ParseRange はクエリパラメータの集計期間を解釈する。
// 空文字列はdefaultDays、数値でなければInvalidRangeError、数値なら範囲内に収める。
func ParseRange(raw string, defaultDays int) (int, error) {
	if raw == "" {
		return ClampRange(defaultDays), nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidRangeError(raw)
	}
	return ClampRange(days), nil
}

// Report はインサイト画面に表示する1回分の分析結果。
type Report struct {
	RangeDays   int
	CheckIns    int // 期間内の実チェックイン日数
	IsSample    bool
	Confidence  model.Confidence
	Uncertainty string
	Source      synth.Source
	Cards       []model.InsightCard // 装飾済み。末尾はネガティブスペースカード
	Stats       Stats
	GeneratedAt time.Time
	Persisted   bool
}

// Stats はカードとは別に表示する集計値。
type Stats struct {
	Average        float64
	Distribution   [5]int
	Weekdays       []WeekdayStat
	BestGoodStreak int
	TopTags        []analysis.TagCount
}

// WeekdayStat は曜日別の平均。
type WeekdayStat struct {
	Weekday string
	Count   int
	Avg     float64
}

func newStats(f analysis.Features) Stats {
	st := Stats{
		Average:        round2(f.Average),
		Distribution:   f.Distribution,
		BestGoodStreak: f.BestGoodStreak,
		TopTags:        append([]analysis.TagCount{}, f.TopTags...),
	}
	for _, wd := range f.Weekdays {
		st.Weekdays = append(st.Weekdays, WeekdayStat{
			Weekday: wd.Weekday.String(),
			Count:   wd.Count,
			Avg:     round2(wd.Avg),
		})
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
