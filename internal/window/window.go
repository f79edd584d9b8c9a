// Package window は分析対象となる固定長の日次系列を構築する。
//
// 実データが疎でも後段の分析が常に同じ長さの連続した系列を扱えるよう、
// 決定的なベースライン（緩やかな正弦波）で欠損日を補完し、実データで上書きする。
package window

import (
	"math"
	"sort"
	"time"

	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/scale"
)

// DefaultDays は既定の分析期間（日数）。
const DefaultDays = 30

// ベースライン波形のパラメータ。
const (
	baselineCenter    = 3.3
	baselineAmplitude = 0.9
	baselinePeriod    = 3.8
)

// Window は today-N+1 から today までの N 日分の気分サンプルを昇順に保持する。
// 各日にちょうど1件のサンプルがあり、欠損や重複はない。構築後は変更されない。
type Window struct {
	samples   []model.MoodSample
	today     time.Time
	realCount int
	isSample  bool
}

// Baseline は today を末尾とする days 日分の合成サンプルを返す。
// 古い日から順に k=0..days-1 として score = clamp(round(3.3 + sin(k/3.8)*0.9)) を割り当てる。
func Baseline(today time.Time, days int) []model.MoodSample {
	if days < 1 {
		days = 1
	}
	today = model.Day(today)
	out := make([]model.MoodSample, 0, days)
	for k := 0; k < days; k++ {
		base := baselineCenter + math.Sin(float64(k)/baselinePeriod)*baselineAmplitude
		score := scale.Clamp(int(math.Floor(base + 0.5)))
		out = append(out, model.MoodSample{
			Date:      today.AddDate(0, 0, k-(days-1)),
			MoodScore: score,
			Intensity: scale.NeutralScore,
			Tags:      []string{},
			Synthetic: true,
		})
	}
	return out
}

// Build は実サンプルをベースラインに重ねて分析ウィンドウを構築する。
//
// 同じ日の実サンプルが複数ある場合は後のものが優先される。
// 期間外の実サンプルは無視する（連続性を保つため）。
// 実サンプルの日数が days 未満ならIsSampleがtrueになる。
func Build(real []model.MoodSample, today time.Time, days int) *Window {
	if days < 1 {
		days = 1
	}
	today = model.Day(today)
	start := today.AddDate(0, 0, -(days - 1))

	byDay := make(map[string]model.MoodSample, days)
	for _, s := range Baseline(today, days) {
		byDay[model.DayKey(s.Date)] = s
	}

	realDays := make(map[string]struct{}, len(real))
	for _, s := range real {
		d := model.Day(s.Date)
		if d.Before(start) || d.After(today) {
			continue
		}
		s.Date = d
		s.Synthetic = false
		s.Tags = append([]string(nil), s.Tags...)
		key := model.DayKey(d)
		byDay[key] = s
		realDays[key] = struct{}{}
	}

	samples := make([]model.MoodSample, 0, len(byDay))
	for _, s := range byDay {
		samples = append(samples, s)
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})
	if len(samples) > days {
		samples = samples[len(samples)-days:]
	}

	return &Window{
		samples:   samples,
		today:     today,
		realCount: len(realDays),
		isSample:  len(realDays) < days,
	}
}

// Samples はウィンドウ内のサンプルのコピーを昇順で返す。
func (w *Window) Samples() []model.MoodSample {
	out := make([]model.MoodSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Scores は各日の気分スコアを昇順で返す。
func (w *Window) Scores() []int {
	out := make([]int, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.MoodScore
	}
	return out
}

// Len はウィンドウの日数を返す。
func (w *Window) Len() int { return len(w.samples) }

// Today はウィンドウ末尾の暦日を返す。
func (w *Window) Today() time.Time { return w.today }

// Start はウィンドウ先頭の暦日を返す。
func (w *Window) Start() time.Time {
	if len(w.samples) == 0 {
		return w.today
	}
	return w.samples[0].Date
}

// RealCount は期間内に実データがある日数を返す。
func (w *Window) RealCount() int { return w.realCount }

// IsSample は実データが期間全体を満たしていないかどうかを返す。
func (w *Window) IsSample() bool { return w.isSample }

// ScoreOn は指定日の気分スコアを返す。期間外ならfalseを返す。
func (w *Window) ScoreOn(day time.Time) (int, bool) {
	idx := int(model.Day(day).Sub(w.Start()).Hours() / 24)
	if idx < 0 || idx >= len(w.samples) {
		return 0, false
	}
	return w.samples[idx].MoodScore, true
}
