// Package synth はシグナルをインサイトカードに変換する。
//
// 変換は2段階で行う。Candidatesがしきい値を満たしたシグナルを候補カードにし、
// Rankが優先度順に並べて重複を除き上限件数に切り詰める。
// 表示用の装飾（根拠、確信度、問いかけ）はEnrichが別段階で付与する。
package synth

import (
	"fmt"
	"math"
	"sort"

	"github.com/hitoshi/moodlens/internal/analysis"
	"github.com/hitoshi/moodlens/internal/model"
)

// カード生成のしきい値。
const (
	// MaxRuleCards はルールから出力するカードの上限。
	MaxRuleCards = 4
	// WeekShiftSteadyBand は週比較で「変化なし」とみなす差の幅。
	WeekShiftSteadyBand = 0.2
	// MinJournalLinkDays はジャーナルとの関連カードに必要な長文日の数。
	MinJournalLinkDays = 4
	// JournalLinkNeutralBand はジャーナル関連カードで「差なし」とみなす幅。
	JournalLinkNeutralBand = 0.2
	// MinEligibleWeekdays は曜日パターンカードに必要な対象曜日数。
	MinEligibleWeekdays = 3
	// WeekdayDiffThreshold は曜日パターンとみなす最高・最低の差。
	WeekdayDiffThreshold = 0.8
	// TagContrastThreshold はタグあり・なしの差として提示する最小値。
	TagContrastThreshold = 0.7
)

// Category はカードの種類。
type Category string

const (
	CategoryWeekShift      Category = "week-shift"
	CategoryVolatility     Category = "volatility"
	CategoryTagLift        Category = "tag-lift"
	CategorySleepNext      Category = "sleep-next"
	CategoryStressNext     Category = "stress-next"
	CategoryJournalLink    Category = "journal-link"
	CategoryWeekdayRhythm  Category = "weekday-rhythm"
	CategoryTagContrast    Category = "tag-contrast"
	CategoryJournalNextDay Category = "journal-next-day"
)

// priority は小さいほど先に提示される。
var priority = map[Category]int{
	CategoryWeekShift:      0,
	CategoryVolatility:     1,
	CategoryTagLift:        2,
	CategorySleepNext:      3,
	CategoryStressNext:     4,
	CategoryJournalLink:    5,
	CategoryWeekdayRhythm:  6,
	CategoryTagContrast:    7,
	CategoryJournalNextDay: 8,
}

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Candidate はランキング前の候補カード。
// Subjectはタグ名など、同じ対象を扱う別カテゴリのカードを重複とみなすためのキー。
type Candidate struct {
	Category Category
	Subject  string
	Card     model.InsightCard
}

// Local はシグナルからランキング済みのカードを生成する。
func Local(f analysis.Features) []model.InsightCard {
	return Rank(Candidates(f))
}

// Candidates はしきい値を満たしたシグナルごとに候補カードを生成する。
func Candidates(f analysis.Features) []Candidate {
	if f.Count == 0 {
		return nil
	}

	var out []Candidate
	if f.Trend.Meaningful {
		out = append(out, weekShift(f.Trend))
	}
	out = append(out, volatility(f.Variance))
	if len(f.TagLifts) > 0 {
		out = append(out, tagLift(f.TagLifts[0]))
	}
	if f.Sleep != nil {
		out = append(out, sleepNext(f.Sleep))
	}
	if f.Stress != nil {
		out = append(out, stressNext(f.Stress))
	}
	if f.Journaling.Days >= MinJournalLinkDays {
		out = append(out, journalLink(f.Journaling))
	}
	if c, ok := weekdayRhythm(f.Weekdays); ok {
		out = append(out, c)
	}
	for _, tc := range f.TagContrasts {
		if math.Abs(tc.Delta) >= TagContrastThreshold {
			out = append(out, tagContrast(tc, f.Average))
		}
	}
	if f.JournalNextDay != nil {
		out = append(out, journalNextDay(f.JournalNextDay))
	}
	return out
}

// Rank は候補を優先度順に並べ、カテゴリ・対象・IDの重複を除いてMaxRuleCards件に切り詰める。
func Rank(cands []Candidate) []model.InsightCard {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priority[sorted[i].Category] < priority[sorted[j].Category]
	})

	seenCategory := map[Category]struct{}{}
	seenSubject := map[string]struct{}{}
	seenID := map[string]struct{}{}
	out := make([]model.InsightCard, 0, MaxRuleCards)

	for _, c := range sorted {
		if len(out) == MaxRuleCards {
			break
		}
		if _, ok := seenCategory[c.Category]; ok {
			continue
		}
		if _, ok := seenID[c.Card.ID]; ok {
			continue
		}
		if c.Subject != "" {
			if _, ok := seenSubject[c.Subject]; ok {
				continue
			}
			seenSubject[c.Subject] = struct{}{}
		}
		seenCategory[c.Category] = struct{}{}
		seenID[c.Card.ID] = struct{}{}
		out = append(out, c.Card)
	}
	return out
}

func weekShift(t analysis.Trend) Candidate {
	card := model.InsightCard{ID: string(CategoryWeekShift), Title: "This week vs last week"}
	switch {
	case math.Abs(t.Shift) < WeekShiftSteadyBand:
		card.Message = "Your last 7 days look pretty steady compared to the week before — no big swings."
	default:
		direction := "a little heavier"
		if t.Shift > 0 {
			direction = "a little lighter"
		}
		card.Message = fmt.Sprintf("Your last 7 days feel %s than the previous week. Not a conclusion — just a gentle nudge.", direction)
	}
	return Candidate{Category: CategoryWeekShift, Card: card}
}

func volatility(variance float64) Candidate {
	card := model.InsightCard{ID: string(CategoryVolatility)}
	if variance < analysis.SteadyVarianceThreshold {
		card.Title = "Your month looks steady"
		card.Message = "Your mood stays within a narrow range most days. Sometimes “boring” is actually calm."
	} else {
		card.Title = "Your month has some ups and downs"
		card.Message = "Your mood changes day-to-day without one obvious driver — and that’s completely normal."
	}
	return Candidate{Category: CategoryVolatility, Card: card}
}

func tagLift(l analysis.TagLift) Candidate {
	sign := "lower"
	if l.Lift > 0 {
		sign = "higher"
	}
	return Candidate{
		Category: CategoryTagLift,
		Subject:  l.Tag,
		Card: model.InsightCard{
			ID:      string(CategoryTagLift) + ":" + l.Tag,
			Title:   fmt.Sprintf("When you tag “%s”", l.Tag),
			Message: fmt.Sprintf("On days tagged “%s”, your mood runs %s than your month average (seen %d times).", l.Tag, sign, l.Count),
		},
	}
}

func sleepNext(e *analysis.LaggedEffect) Candidate {
	sign := "a bit lower"
	if e.Diff > 0 {
		sign = "steadier"
	}
	return Candidate{
		Category: CategorySleepNext,
		Card: model.InsightCard{
			ID:      string(CategorySleepNext),
			Title:   "Sleep shows up the next day",
			Message: fmt.Sprintf("After “sleep” days, the next day tends to feel %s (based on %d transitions).", sign, e.Transitions),
		},
	}
}

func stressNext(e *analysis.LaggedEffect) Candidate {
	sign := "not consistently worse"
	if e.Diff < 0 {
		sign = "heavier"
	}
	return Candidate{
		Category: CategoryStressNext,
		Card: model.InsightCard{
			ID:      string(CategoryStressNext),
			Title:   "Stress doesn’t always stick",
			Message: fmt.Sprintf("After “stress” days, the next day is %s (based on %d transitions).", sign, e.Transitions),
		},
	}
}

func journalLink(j analysis.JournalingEffect) Candidate {
	card := model.InsightCard{ID: string(CategoryJournalLink), Title: "Journaling + mood (soft link)"}
	switch {
	case math.Abs(j.Diff) < JournalLinkNeutralBand:
		card.Message = "On days you write longer entries, your mood looks similar — journaling might be support, not a switch."
	case j.Diff > 0:
		card.Message = "Longer journaling days tend to be calmer — but inconsistently."
	default:
		card.Message = "On longer journaling days, mood sometimes dips — it may just be processing."
	}
	return Candidate{Category: CategoryJournalLink, Card: card}
}

func weekdayRhythm(days [7]analysis.WeekdayMean) (Candidate, bool) {
	var eligible []analysis.WeekdayMean
	for _, d := range days {
		if d.Eligible {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) < MinEligibleWeekdays {
		return Candidate{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Avg < eligible[j].Avg })
	low, high := eligible[0], eligible[len(eligible)-1]
	diff := high.Avg - low.Avg
	if diff < WeekdayDiffThreshold {
		return Candidate{}, false
	}
	return Candidate{
		Category: CategoryWeekdayRhythm,
		Card: model.InsightCard{
			ID:    string(CategoryWeekdayRhythm),
			Title: "A weekday pattern is showing up",
			Message: fmt.Sprintf("Your mood tends to run lower on %s and higher on %s (difference ≈ %.1f).",
				weekdayNames[low.Weekday], weekdayNames[high.Weekday], diff),
		},
	}, true
}

func tagContrast(c analysis.TagContrast, avg float64) Candidate {
	return Candidate{
		Category: CategoryTagContrast,
		Subject:  c.Tag,
		Card: model.InsightCard{
			ID:    string(CategoryTagContrast) + ":" + c.Tag,
			Title: fmt.Sprintf("“%s” days look different", c.Tag),
			Message: fmt.Sprintf("On days tagged “%s”, your average mood shifts by %.1f compared to other days (overall avg ≈ %.1f).",
				c.Tag, c.Delta, avg),
		},
	}
}

func journalNextDay(j *analysis.JournalNextDay) Candidate {
	return Candidate{
		Category: CategoryJournalNextDay,
		Card: model.InsightCard{
			ID:    string(CategoryJournalNextDay),
			Title: "Journaling + next-day shift",
			Message: fmt.Sprintf("On days you journal, the next day mood changes by about %.1f on average (positive means a lift).",
				j.AvgDelta),
		},
	}
}
