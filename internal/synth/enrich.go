package synth

import (
	"fmt"
	"math"

	"github.com/hitoshi/moodlens/internal/analysis"
	"github.com/hitoshi/moodlens/internal/model"
)

// 装飾段階のしきい値。いずれも期間内の実チェックイン数で判定する。
const (
	HighConfidenceCheckIns   = 20
	MediumConfidenceCheckIns = 10
	// UncertaintyCheckIns 未満では不確実性の注記を表示する。
	UncertaintyCheckIns = 12
	// NegativeSpaceMinCheckIns 未満ではネガティブスペースカードを「データ不足」の文面にする。
	NegativeSpaceMinCheckIns = 10
	// JournalNoteMinCheckIns 未満ではジャーナル注記を付けない。
	JournalNoteMinCheckIns = 10
	// JournalNoteMinDays はジャーナル注記で傾向を述べるのに必要な長文日の数。
	JournalNoteMinDays = 3
	// JournalNoteNeutralBand はジャーナル注記で「差なし」とみなす幅。
	JournalNoteNeutralBand = 0.25
)

// NegativeSpaceID はネガティブスペースカードのID。
const NegativeSpaceID = "negative-space"

// UncertaintyCopy はデータが少ないときに表示する注記。
const UncertaintyCopy = "We’re noticing hints of a pattern, but there isn’t enough data yet to be confident."

var invites = [...]string{
	"You might experiment with one small change for a week — just to notice what shifts.",
	"It could help to pay attention to what you do on calmer days (no fixing required).",
	"Just observing this pattern for a few days may be enough.",
}

const negativeSpaceInvite = "Patterns don’t judge — they just show up."

// EnrichInput は装飾に必要な集計値。
type EnrichInput struct {
	CheckIns   int // 期間内の実チェックイン日数
	RangeDays  int
	Variance   float64
	Journaling analysis.JournalingEffect
}

// Enrich はカードに根拠・確信度・問いかけ・ジャーナル注記を付与し、
// 末尾にネガティブスペースカードを追加する。入力のカードは変更しない。
// 確信度は1回の実行で全カード共通。
func Enrich(cards []model.InsightCard, in EnrichInput) []model.InsightCard {
	evidence := fmt.Sprintf("Based on %d check-ins over the last %d days", in.CheckIns, in.RangeDays)
	conf := ConfidenceFor(in.CheckIns)

	var note string
	if signal, ok := JournalSignal(in.Journaling, in.CheckIns); ok {
		note = "Journal note: " + signal
	}

	out := make([]model.InsightCard, 0, len(cards)+1)
	for i, c := range cards {
		c.Evidence = evidence
		c.Confidence = conf
		c.Invite = invites[i%len(invites)]
		c.Note = note
		out = append(out, c)
	}

	out = append(out, model.InsightCard{
		ID:         NegativeSpaceID,
		Title:      "A normal note",
		Message:    NegativeSpaceMessage(in.CheckIns, in.Variance),
		Evidence:   evidence,
		Confidence: conf,
		Invite:     negativeSpaceInvite,
		Note:       note,
	})
	return out
}

// ConfidenceFor は実チェックイン数から確信度を決める。
func ConfidenceFor(checkIns int) model.Confidence {
	switch {
	case checkIns >= HighConfidenceCheckIns:
		return model.ConfidenceHigh
	case checkIns >= MediumConfidenceCheckIns:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// Uncertainty は不確実性の注記を返す。十分なデータがあれば空文字列。
func Uncertainty(checkIns int) string {
	if checkIns >= UncertaintyCheckIns {
		return ""
	}
	return UncertaintyCopy
}

// NegativeSpaceMessage は「パターンがなくても普通」と伝える文面を返す。
func NegativeSpaceMessage(checkIns int, variance float64) string {
	switch {
	case checkIns < NegativeSpaceMinCheckIns:
		return "No strong patterns detected yet — and that’s okay."
	case variance < analysis.SteadyVarianceThreshold:
		return "Your mood has been fairly steady — not every month needs a lesson."
	default:
		return "Your moods vary day-to-day, without a clear driver — and that’s completely normal."
	}
}

// JournalSignal はジャーナルに関する注記を返す。
// ジャーナルがない、またはチェックインが少ない場合はfalseを返す。
func JournalSignal(j analysis.JournalingEffect, checkIns int) (string, bool) {
	if !j.HasJournal || checkIns < JournalNoteMinCheckIns {
		return "", false
	}
	switch {
	case j.LongDayCount == 0:
		return "Journaling is here if you want it — no pressure to write a lot.", true
	case j.Days < JournalNoteMinDays:
		return "Journaling days might matter, but it’s too early to be sure.", true
	case math.Abs(j.Diff) < JournalNoteNeutralBand:
		return "On days you journal more, your mood looks similar — but consistency varies.", true
	case j.Diff > 0:
		return "Journaling days tend to be calmer, but inconsistently.", true
	default:
		return "On longer journaling days, mood sometimes dips — it may just be processing.", true
	}
}
