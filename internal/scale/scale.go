// Package scale は気分スコアのスケール変換とチェックイン入力の正規化を提供する。
//
// 正規スケールは1..5。旧スケール（-2..2）で保存された値は読み込み時に自動判別して変換する。
// 判別は値の範囲のみで行うため、1と2は旧スケールとして解釈される（正規値の1, 2とは区別できない）。
package scale

import (
	"math"
	"strings"
)

const (
	// MinScore は正規スケールの下限。
	MinScore = 1
	// MaxScore は正規スケールの上限。
	MaxScore = 5
	// NeutralScore は数値として解釈できない入力に用いる中央値。
	NeutralScore = 3

	// LegacyMin は旧スケールの下限。
	LegacyMin = -2
	// LegacyMax は旧スケールの上限。
	LegacyMax = 2
	// legacyOffset は旧スケールから正規スケールへのオフセット。
	legacyOffset = 3

	// MaxTags は1チェックインあたりのタグ上限。
	MaxTags = 12
)

// Normalize は生の気分スコアを正規スケール1..5に変換する。
// LegacyMin以上LegacyMax以下の値は旧スケールとみなしてオフセットを加える。
// それ以外の値は丸めた上で1..5に収める。NaNや無限大は中央値になる。
func Normalize(raw float64) int {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return NeutralScore
	}
	if raw >= LegacyMin && raw <= LegacyMax {
		return Clamp(roundHalfUp(raw + legacyOffset))
	}
	return Clamp(roundHalfUp(raw))
}

// Denormalize は正規スケールの値を旧スケールに戻す。
// 旧スケールのストアに書き込む呼び出し元が使う。
func Denormalize(canonical int) int {
	return Clamp(canonical) - legacyOffset
}

// Canonical は正規スケールで送られた入力値を丸めて1..5に収める。
// 旧スケールの判別は行わない。NaNや無限大は中央値になる。
func Canonical(raw float64) int {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return NeutralScore
	}
	return Clamp(roundHalfUp(raw))
}

// ClampIntensity は強度を1..5に収める。
func ClampIntensity(raw float64) int {
	return Canonical(raw)
}

// Clamp は整数値を1..5に収める。
func Clamp(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// NormalizeTags はタグを小文字化・trimし、空文字と重複を除いてMaxTags件までに切り詰める。
// 最初に現れた順序を保つ。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// roundHalfUp は0.5を切り上げる丸めを行う。
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
