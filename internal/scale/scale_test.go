package scale

import (
	"math"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want int
	}{
		{"legacy -2", -2, 1},
		{"legacy -1", -1, 2},
		{"legacy 0", 0, 3},
		{"legacy 1", 1, 4},
		{"canonical 3", 3, 3},
		{"canonical 4", 4, 4},
		{"canonical 5", 5, 5},
		{"above range", 9, 5},
		{"below legacy range", -7, 1},
		{"fractional legacy", 0.5, 4},
		{"fractional canonical", 3.4, 3},
		{"NaN", math.NaN(), 3},
		{"Inf", math.Inf(1), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%v) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

// TestNormalize_OverlapAmbiguity は正規値の1と2が旧スケールとして読まれることを固定する。
// 値の範囲だけでは判別できないため、この挙動は既知の制約として残している。
func TestNormalize_OverlapAmbiguity(t *testing.T) {
	if got := Normalize(2); got != 5 {
		t.Errorf("Normalize(2) = %d, want 5 (read as legacy +2)", got)
	}
	if got := Normalize(1); got != 4 {
		t.Errorf("Normalize(1) = %d, want 4 (read as legacy +1)", got)
	}
}

func TestNormalize_IdempotentOutsideOverlap(t *testing.T) {
	for _, v := range []int{3, 4, 5} {
		once := Normalize(float64(v))
		twice := Normalize(float64(once))
		if once != twice {
			t.Errorf("Normalize not idempotent for %d: %d then %d", v, once, twice)
		}
	}
}

func TestDenormalize_RoundTrip(t *testing.T) {
	for legacy := LegacyMin; legacy <= LegacyMax; legacy++ {
		canonical := Normalize(float64(legacy))
		if got := Denormalize(canonical); got != legacy {
			t.Errorf("Denormalize(Normalize(%d)) = %d", legacy, got)
		}
	}
}

func TestCanonical_NoLegacyGuess(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{-2, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3.5, 4},
		{5, 5},
		{9, 5},
		{math.NaN(), 3},
		{math.Inf(1), 3},
	}
	for _, tt := range tests {
		if got := Canonical(tt.raw); got != tt.want {
			t.Errorf("Canonical(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestClampIntensity(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 1},
		{1, 1},
		{2.5, 3},
		{5, 5},
		{11, 5},
		{math.NaN(), 3},
	}
	for _, tt := range tests {
		if got := ClampIntensity(tt.raw); got != tt.want {
			t.Errorf("ClampIntensity(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Sleep", "WORK", "", "sleep", "  ", "Family "})
	want := []string{"sleep", "work", "family"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestNormalizeTags_CapsAtMax(t *testing.T) {
	in := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		in = append(in, string(rune('a'+i)))
	}
	got := NormalizeTags(in)
	if len(got) != MaxTags {
		t.Fatalf("len = %d, want %d", len(got), MaxTags)
	}
	if got[0] != "a" || got[MaxTags-1] != "l" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestNormalizeTags_Nil(t *testing.T) {
	got := NormalizeTags(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("NormalizeTags(nil) = %#v, want empty slice", got)
	}
}
