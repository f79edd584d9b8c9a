package model

import (
	"time"
)

// DayLayout は暦日の文字列表現（YYYY-MM-DD）。
const DayLayout = "2006-01-02"

// MoodSample はユーザーの1日分の気分チェックインを表す。
// (UserID, Date) の組で一意。MoodScoreとIntensityは正規スケール1..5。
type MoodSample struct {
	ID        string
	UserID    string
	Date      time.Time // 暦日（UTCの0時）
	MoodScore int
	Intensity int
	Tags      []string // 小文字・trim済み・重複なし
	Note      string
	Synthetic bool // ベースライン補完による合成サンプル
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalSample はジャーナルエントリーを表す。
// 同じ日に複数のエントリーが存在しうる。
type JournalSample struct {
	ID        string
	UserID    string
	Date      time.Time // 暦日（UTCの0時）
	Text      string
	Prompt    string
	CreatedAt time.Time
}

// Day は時刻tの属するロケーション上の暦日を、UTCの0時として返す。
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today は指定ロケーションにおける今日の暦日を返す。
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// DayKey は暦日の重複排除キーを返す。
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay はYYYY-MM-DD形式の文字列を暦日に変換する。
// 解釈できない場合はMalformedSampleErrorを返す。
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, &MalformedSampleError{Field: "date", Value: s}
	}
	return t, nil
}
