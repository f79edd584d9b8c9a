// Package analysis は分析ウィンドウから統計的なシグナルを抽出する。
// 抽出は純粋関数で行い、入力を変更しない。
package analysis

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/window"
)

// シグナル抽出のしきい値。
const (
	// TrendSpan は直近週・前週の比較に使う日数。
	TrendSpan = 7
	// MinSamplesForTrend は週比較を有意とみなす最小サンプル数。
	MinSamplesForTrend = 14
	// SteadyVarianceThreshold はこれ未満の分散を「安定」とみなす。
	SteadyVarianceThreshold = 0.35
	// MinTagDays はタグ別リフトの対象になる最小出現日数。
	MinTagDays = 4
	// MinLaggedTransitions は翌日効果を算出する最小遷移数。
	MinLaggedTransitions = 5
	// LongEntryChars はこれを超える文字数のエントリーを長文とみなす。
	LongEntryChars = 220
	// MinWeekdaySamples は曜日平均の対象になる最小サンプル数。
	MinWeekdaySamples = 2
	// GoodDayScore はこれ以上のスコアを「良い日」とみなす。
	GoodDayScore = 4
	// MinTagContrastDays はタグあり・なしそれぞれに必要な最小日数。
	MinTagContrastDays = 3
	// MinJournalNextDayPairs はジャーナル翌日変化を算出する最小ペア数。
	MinJournalNextDayPairs = 3
	// TopTagLimit は頻出タグとして返す件数。
	TopTagLimit = 8
)

// Features はウィンドウから抽出したシグナルの集合。
type Features struct {
	Count    int
	Average  float64
	Variance float64 // 母分散
	StdDev   float64

	Trend Trend

	TagLifts     []TagLift     // |Lift|の降順
	TagContrasts []TagContrast // |Delta|の降順
	Sleep        *LaggedEffect // 対象外ならnil
	Stress       *LaggedEffect // 対象外ならnil

	Journaling     JournalingEffect
	JournalNextDay *JournalNextDay // 対象外ならnil

	Weekdays       [7]WeekdayMean // 0=日曜
	BestGoodStreak int
	Distribution   [5]int // スコア1..5の件数
	TopTags        []TagCount
}

// Trend は直近7日と前の7日の平均差。
type Trend struct {
	Last7Avg   float64
	Prev7Avg   float64
	Shift      float64
	Meaningful bool // サンプル数がMinSamplesForTrend以上
}

// TagLift はタグ付き日の平均とウィンドウ平均の差。
type TagLift struct {
	Tag   string
	Count int
	Avg   float64
	Lift  float64
}

// TagContrast はタグあり日とタグなし日の平均差。
type TagContrast struct {
	Tag          string
	WithCount    int
	WithoutCount int
	Delta        float64
}

// LaggedEffect はタグ付き日の翌日に現れる変化。
type LaggedEffect struct {
	Tag         string
	TaggedAvg   float64
	NextAvg     float64
	Diff        float64 // NextAvg - TaggedAvg
	Transitions int
}

// JournalingEffect は長文ジャーナルの日の気分とウィンドウ平均の差。
type JournalingEffect struct {
	HasJournal   bool // ジャーナルが1件以上あるか
	LongDayCount int  // 長文エントリーのある日数（期間外も含む）
	Days         int  // ウィンドウと重なる長文日の数
	Avg          float64
	Diff         float64
}

// JournalNextDay はジャーナルを書いた日から翌日への気分変化の平均。
type JournalNextDay struct {
	Pairs    int
	AvgDelta float64
}

// WeekdayMean は曜日別の平均。
type WeekdayMean struct {
	Weekday  time.Weekday
	Count    int
	Avg      float64
	Eligible bool // Count >= MinWeekdaySamples
}

// TagCount はタグの出現回数。
type TagCount struct {
	Tag   string
	Count int
}

// IsLongEntry はジャーナル本文が長文の基準を超えるかを返す。
func IsLongEntry(text string) bool {
	return utf8.RuneCountInString(text) > LongEntryChars
}

// Extract はウィンドウとジャーナルからシグナルを抽出する。
func Extract(w *window.Window, journals []model.JournalSample) Features {
	samples := w.Samples()
	scores := w.Scores()

	f := Features{Count: len(scores)}
	if len(scores) == 0 {
		return f
	}

	f.Average = mean(scores)
	f.Variance = variance(scores, f.Average)
	f.StdDev = math.Sqrt(f.Variance)
	f.Trend = trend(scores)
	f.TagLifts = tagLifts(samples, f.Average)
	f.TagContrasts = tagContrasts(samples)
	f.Sleep = laggedEffect(samples, "sleep")
	f.Stress = laggedEffect(samples, "stress")
	f.Journaling = journaling(w, journals, f.Average)
	f.JournalNextDay = journalNextDay(w, journals)
	f.Weekdays = weekdays(samples)
	f.BestGoodStreak = bestGoodStreak(scores)
	f.Distribution = distribution(scores)
	f.TopTags = topTags(samples)

	return f
}

// Lagged は任意のタグの翌日効果を返す。遷移数が不足する場合はnil。
func Lagged(w *window.Window, tag string) *LaggedEffect {
	return laggedEffect(w.Samples(), tag)
}

func trend(scores []int) Trend {
	n := len(scores)
	last := scores[max(0, n-TrendSpan):]
	prev := scores[max(0, n-2*TrendSpan):max(0, n-TrendSpan)]

	t := Trend{Last7Avg: mean(last), Meaningful: n >= MinSamplesForTrend}
	if len(prev) > 0 {
		t.Prev7Avg = mean(prev)
	} else {
		t.Prev7Avg = t.Last7Avg
	}
	t.Shift = t.Last7Avg - t.Prev7Avg
	return t
}

func tagLifts(samples []model.MoodSample, avg float64) []TagLift {
	counts := map[string]int{}
	sums := map[string]int{}
	for _, s := range samples {
		for _, tag := range s.Tags {
			counts[tag]++
			sums[tag] += s.MoodScore
		}
	}

	var out []TagLift
	for tag, c := range counts {
		if c < MinTagDays {
			continue
		}
		tagAvg := float64(sums[tag]) / float64(c)
		out = append(out, TagLift{Tag: tag, Count: c, Avg: tagAvg, Lift: tagAvg - avg})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Lift), math.Abs(out[j].Lift)
		if ai != aj {
			return ai > aj
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

func tagContrasts(samples []model.MoodSample) []TagContrast {
	tags := map[string]struct{}{}
	for _, s := range samples {
		for _, tag := range s.Tags {
			tags[tag] = struct{}{}
		}
	}

	var out []TagContrast
	for tag := range tags {
		var with, without []int
		for _, s := range samples {
			if hasTag(s, tag) {
				with = append(with, s.MoodScore)
			} else {
				without = append(without, s.MoodScore)
			}
		}
		if len(with) < MinTagContrastDays || len(without) < MinTagContrastDays {
			continue
		}
		out = append(out, TagContrast{
			Tag:          tag,
			WithCount:    len(with),
			WithoutCount: len(without),
			Delta:        mean(with) - mean(without),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Delta), math.Abs(out[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

func laggedEffect(samples []model.MoodSample, tag string) *LaggedEffect {
	var tagged, next []int
	for i := 0; i < len(samples)-1; i++ {
		if !hasTag(samples[i], tag) {
			continue
		}
		tagged = append(tagged, samples[i].MoodScore)
		next = append(next, samples[i+1].MoodScore)
	}
	if len(next) < MinLaggedTransitions {
		return nil
	}
	a, b := mean(tagged), mean(next)
	return &LaggedEffect{Tag: tag, TaggedAvg: a, NextAvg: b, Diff: b - a, Transitions: len(next)}
}

func journaling(w *window.Window, journals []model.JournalSample, avg float64) JournalingEffect {
	e := JournalingEffect{HasJournal: len(journals) > 0}

	longDays := map[string]time.Time{}
	for _, j := range journals {
		if IsLongEntry(j.Text) {
			d := model.Day(j.Date)
			longDays[model.DayKey(d)] = d
		}
	}
	e.LongDayCount = len(longDays)

	var vals []int
	for _, d := range longDays {
		if v, ok := w.ScoreOn(d); ok {
			vals = append(vals, v)
		}
	}
	e.Days = len(vals)
	if e.Days > 0 {
		e.Avg = mean(vals)
		e.Diff = e.Avg - avg
	}
	return e
}

func journalNextDay(w *window.Window, journals []model.JournalSample) *JournalNextDay {
	days := map[string]time.Time{}
	for _, j := range journals {
		d := model.Day(j.Date)
		days[model.DayKey(d)] = d
	}

	var deltas []int
	for _, d := range days {
		m0, ok0 := w.ScoreOn(d)
		m1, ok1 := w.ScoreOn(d.AddDate(0, 0, 1))
		if ok0 && ok1 {
			deltas = append(deltas, m1-m0)
		}
	}
	if len(deltas) < MinJournalNextDayPairs {
		return nil
	}
	return &JournalNextDay{Pairs: len(deltas), AvgDelta: mean(deltas)}
}

func weekdays(samples []model.MoodSample) [7]WeekdayMean {
	var sums, counts [7]int
	for _, s := range samples {
		wd := s.Date.Weekday()
		sums[wd] += s.MoodScore
		counts[wd]++
	}

	var out [7]WeekdayMean
	for i := range out {
		out[i] = WeekdayMean{Weekday: time.Weekday(i), Count: counts[i]}
		if counts[i] > 0 {
			out[i].Avg = float64(sums[i]) / float64(counts[i])
		}
		out[i].Eligible = counts[i] >= MinWeekdaySamples
	}
	return out
}

func bestGoodStreak(scores []int) int {
	best, cur := 0, 0
	for _, v := range scores {
		if v >= GoodDayScore {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

func distribution(scores []int) [5]int {
	var out [5]int
	for _, v := range scores {
		if v >= 1 && v <= 5 {
			out[v-1]++
		}
	}
	return out
}

func topTags(samples []model.MoodSample) []TagCount {
	counts := map[string]int{}
	for _, s := range samples {
		for _, tag := range s.Tags {
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, c := range counts {
		out = append(out, TagCount{Tag: tag, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > TopTagLimit {
		out = out[:TopTagLimit]
	}
	return out
}

func hasTag(s model.MoodSample, tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func mean(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

func variance(vals []int, avg float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		d := float64(v) - avg
		sum += d * d
	}
	return sum / float64(len(vals))
}
