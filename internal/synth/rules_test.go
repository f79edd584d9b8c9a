package synth

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/moodlens/internal/analysis"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/window"
)

var testToday = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

func baseFeatures() analysis.Features {
	return analysis.Features{Count: 30, Average: 3, Variance: 0.1}
}

func findCard(cards []model.InsightCard, id string) (model.InsightCard, bool) {
	for _, c := range cards {
		if c.ID == id {
			return c, true
		}
	}
	return model.InsightCard{}, false
}

func TestCandidates_EmptyFeatures(t *testing.T) {
	if got := Candidates(analysis.Features{}); got != nil {
		t.Errorf("Candidates = %+v, want nil", got)
	}
	if got := Local(analysis.Features{}); len(got) != 0 {
		t.Errorf("Local = %+v, want empty", got)
	}
}

func TestWeekShift_AbsentForShortWindow(t *testing.T) {
	f := analysis.Extract(window.Build(nil, testToday, 10), nil)

	if _, ok := findCard(Local(f), "week-shift"); ok {
		t.Error("week-shift must not be emitted for a 10-day window")
	}
}

func TestWeekShift_Messages(t *testing.T) {
	tests := []struct {
		name  string
		shift float64
		want  string
	}{
		{"steady", 0.1, "look pretty steady"},
		{"lighter", 0.5, "feel a little lighter"},
		{"heavier", -0.5, "feel a little heavier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := baseFeatures()
			f.Trend = analysis.Trend{Shift: tt.shift, Meaningful: true}

			card, ok := findCard(Local(f), "week-shift")
			if !ok {
				t.Fatal("expected week-shift card")
			}
			if card.Title != "This week vs last week" {
				t.Errorf("Title = %q", card.Title)
			}
			if !strings.Contains(card.Message, tt.want) {
				t.Errorf("Message = %q, want to contain %q", card.Message, tt.want)
			}
		})
	}
}

func TestVolatility_Split(t *testing.T) {
	f := baseFeatures()
	f.Variance = 0.34
	card, _ := findCard(Local(f), "volatility")
	if card.Title != "Your month looks steady" {
		t.Errorf("Title = %q", card.Title)
	}

	for _, v := range []float64{0.35, 0.36} {
		f.Variance = v
		card, _ = findCard(Local(f), "volatility")
		if card.Title != "Your month has some ups and downs" {
			t.Errorf("variance %v: Title = %q", v, card.Title)
		}
	}
}

func TestTagLift_Card(t *testing.T) {
	f := baseFeatures()
	f.TagLifts = []analysis.TagLift{{Tag: "walk", Count: 6, Avg: 4, Lift: 1}}

	card, ok := findCard(Local(f), "tag-lift:walk")
	if !ok {
		t.Fatal("expected tag-lift card")
	}
	want := "On days tagged “walk”, your mood runs higher than your month average (seen 6 times)."
	if card.Message != want {
		t.Errorf("Message = %q, want %q", card.Message, want)
	}
}

func TestLaggedCards(t *testing.T) {
	f := baseFeatures()
	f.Sleep = &analysis.LaggedEffect{Tag: "sleep", Diff: 0.6, Transitions: 5}
	f.Stress = &analysis.LaggedEffect{Tag: "stress", Diff: -0.4, Transitions: 7}

	cards := Local(f)

	sleep, ok := findCard(cards, "sleep-next")
	if !ok || !strings.Contains(sleep.Message, "tends to feel steadier (based on 5 transitions)") {
		t.Errorf("sleep card = %+v", sleep)
	}
	stress, ok := findCard(cards, "stress-next")
	if !ok || !strings.Contains(stress.Message, "the next day is heavier (based on 7 transitions)") {
		t.Errorf("stress card = %+v", stress)
	}
}

func TestJournalLink_Threshold(t *testing.T) {
	f := baseFeatures()
	f.Journaling = analysis.JournalingEffect{HasJournal: true, LongDayCount: 3, Days: 3, Diff: 0.5}
	if _, ok := findCard(Local(f), "journal-link"); ok {
		t.Error("journal-link must need 4 long-entry days")
	}

	f.Journaling.Days = 4
	card, ok := findCard(Local(f), "journal-link")
	if !ok {
		t.Fatal("expected journal-link card")
	}
	if card.Message != "Longer journaling days tend to be calmer — but inconsistently." {
		t.Errorf("Message = %q", card.Message)
	}
}

func TestWeekdayRhythm(t *testing.T) {
	f := analysis.Features{Count: 14, Average: 3, Variance: 0.5}
	avgs := [7]float64{3, 2, 3, 3, 3, 3.5, 3}
	for i := range f.Weekdays {
		f.Weekdays[i] = analysis.WeekdayMean{Weekday: time.Weekday(i), Count: 2, Avg: avgs[i], Eligible: true}
	}

	card, ok := findCard(Local(f), "weekday-rhythm")
	if !ok {
		t.Fatal("expected weekday-rhythm card")
	}
	want := "Your mood tends to run lower on Mon and higher on Fri (difference ≈ 1.5)."
	if card.Message != want {
		t.Errorf("Message = %q, want %q", card.Message, want)
	}
}

func TestWeekdayRhythm_NotEnoughWeekdays(t *testing.T) {
	f := analysis.Features{Count: 14, Average: 3}
	f.Weekdays[1] = analysis.WeekdayMean{Weekday: time.Monday, Count: 2, Avg: 1, Eligible: true}
	f.Weekdays[5] = analysis.WeekdayMean{Weekday: time.Friday, Count: 2, Avg: 5, Eligible: true}

	if _, ok := findCard(Local(f), "weekday-rhythm"); ok {
		t.Error("weekday-rhythm needs at least 3 eligible weekdays")
	}
}

func TestRank_CapsAtFourInPriorityOrder(t *testing.T) {
	f := baseFeatures()
	f.Trend = analysis.Trend{Shift: 0.5, Meaningful: true}
	f.TagLifts = []analysis.TagLift{{Tag: "walk", Count: 5, Lift: 1}}
	f.Sleep = &analysis.LaggedEffect{Tag: "sleep", Diff: 1, Transitions: 6}
	f.Stress = &analysis.LaggedEffect{Tag: "stress", Diff: 1, Transitions: 6}
	f.Journaling = analysis.JournalingEffect{HasJournal: true, LongDayCount: 5, Days: 5}

	cards := Local(f)

	want := []string{"week-shift", "volatility", "tag-lift:walk", "sleep-next"}
	if len(cards) != len(want) {
		t.Fatalf("len = %d, want %d", len(cards), len(want))
	}
	for i, id := range want {
		if cards[i].ID != id {
			t.Errorf("cards[%d].ID = %q, want %q", i, cards[i].ID, id)
		}
	}
}

func TestRank_DedupesSameTag(t *testing.T) {
	f := baseFeatures()
	f.TagLifts = []analysis.TagLift{{Tag: "walk", Count: 5, Lift: 1}}
	f.TagContrasts = []analysis.TagContrast{
		{Tag: "walk", WithCount: 5, WithoutCount: 25, Delta: 1.2},
		{Tag: "rain", WithCount: 4, WithoutCount: 26, Delta: -0.9},
	}

	cards := Local(f)

	if _, ok := findCard(cards, "tag-contrast:walk"); ok {
		t.Error("tag-contrast for the tag-lift subject should be dropped")
	}
	if _, ok := findCard(cards, "tag-contrast:rain"); !ok {
		t.Errorf("expected tag-contrast:rain, got %+v", cards)
	}
}

func TestRank_OnePerCategory(t *testing.T) {
	cands := []Candidate{
		{Category: CategoryTagContrast, Subject: "a", Card: model.InsightCard{ID: "tag-contrast:a"}},
		{Category: CategoryTagContrast, Subject: "b", Card: model.InsightCard{ID: "tag-contrast:b"}},
		{Category: CategoryVolatility, Card: model.InsightCard{ID: "volatility"}},
	}

	cards := Rank(cands)

	if len(cards) != 2 || cards[0].ID != "volatility" || cards[1].ID != "tag-contrast:a" {
		t.Errorf("Rank = %+v", cards)
	}
}

func TestJournalNextDayCard(t *testing.T) {
	f := baseFeatures()
	f.JournalNextDay = &analysis.JournalNextDay{Pairs: 4, AvgDelta: 0.5}

	card, ok := findCard(Local(f), "journal-next-day")
	if !ok {
		t.Fatal("expected journal-next-day card")
	}
	want := "On days you journal, the next day mood changes by about 0.5 on average (positive means a lift)."
	if card.Message != want {
		t.Errorf("Message = %q, want %q", card.Message, want)
	}
}
