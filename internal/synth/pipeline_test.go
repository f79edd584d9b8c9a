package synth

import (
	"math"
	"strings"
	"testing"

	"github.com/hitoshi/moodlens/internal/analysis"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/window"
)

// realWindow はscoresを古い日から順に並べた実データだけのウィンドウを作る。
func realWindow(scores []int, tags map[int][]string) *window.Window {
	n := len(scores)
	real := make([]model.MoodSample, n)
	for i, s := range scores {
		real[i] = model.MoodSample{
			Date:      testToday.AddDate(0, 0, i-(n-1)),
			MoodScore: s,
			Tags:      tags[i],
		}
	}
	return window.Build(real, testToday, n)
}

// 14日間で直近7日の平均が前の7日よりちょうど1.0高い場合は「軽い」側のメッセージになる。
func TestPipeline_WeekShiftLighterByOne(t *testing.T) {
	scores := []int{3, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4}
	w := realWindow(scores, nil)
	if w.Len() != 14 {
		t.Fatalf("window length = %d, want 14", w.Len())
	}

	f := analysis.Extract(w, nil)
	if got := f.Trend.Last7Avg - f.Trend.Prev7Avg; got != 1.0 {
		t.Fatalf("last7 - prev7 = %v, want 1.0", got)
	}

	card, ok := findCard(Local(f), "week-shift")
	if !ok {
		t.Fatal("expected week-shift card for a 14-day window")
	}
	if !strings.Contains(card.Message, "a little lighter") {
		t.Errorf("Message = %q, want the lighter branch", card.Message)
	}
}

// 30日間のうち「sleep」が4日（平均4.5）、全体平均3.0ならリフトは約1.5でカードがsleepを名指しする。
func TestPipeline_SleepTagLift(t *testing.T) {
	scores := make([]int, 30)
	for i := range scores {
		scores[i] = 3
	}
	// 全体平均を3.0に保つため、タグなしの6日を2にする
	for _, i := range []int{1, 6, 11, 16, 21, 26} {
		scores[i] = 2
	}
	tags := map[int][]string{}
	for j, i := range []int{3, 10, 17, 24} {
		scores[i] = []int{4, 5, 4, 5}[j]
		tags[i] = []string{"sleep"}
	}

	f := analysis.Extract(realWindow(scores, tags), nil)

	if math.Abs(f.Average-3.0) > 1e-9 {
		t.Fatalf("Average = %v, want 3.0", f.Average)
	}
	if len(f.TagLifts) == 0 || f.TagLifts[0].Tag != "sleep" || f.TagLifts[0].Count != 4 {
		t.Fatalf("TagLifts = %+v, want sleep with 4 days", f.TagLifts)
	}
	if lift := f.TagLifts[0].Lift; math.Abs(lift-1.5) > 1e-9 {
		t.Errorf("Lift = %v, want 1.5", lift)
	}

	card, ok := findCard(Local(f), "tag-lift:sleep")
	if !ok {
		t.Fatal("expected tag-lift card naming sleep")
	}
	if !strings.Contains(card.Title, "sleep") || !strings.Contains(card.Message, "sleep") {
		t.Errorf("card = %+v, want it to name sleep", card)
	}
	if !strings.Contains(card.Message, "higher") {
		t.Errorf("Message = %q, want higher", card.Message)
	}
}

// タグの出現が3日ではリフトのカードは出ない。
func TestPipeline_TagLiftNeedsFourDays(t *testing.T) {
	scores := make([]int, 30)
	tags := map[int][]string{}
	for i := range scores {
		scores[i] = 3
	}
	for _, i := range []int{3, 10, 17} {
		scores[i] = 5
		tags[i] = []string{"sleep"}
	}

	if _, ok := findCard(Local(analysis.Extract(realWindow(scores, tags), nil)), "tag-lift:sleep"); ok {
		t.Error("tag-lift card must not fire with only 3 tagged days")
	}
}
