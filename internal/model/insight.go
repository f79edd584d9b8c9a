package model

// Confidence はインサイトカードの確信度。
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// InsightCard はユーザーに提示する短いインサイト。
// IDはカテゴリと対象（タグ名など）から決まり、同じ条件なら同じ値になる。
// Evidence、Confidence、Invite、Noteは表示直前の装飾段階で付与される。
type InsightCard struct {
	ID         string
	Title      string
	Message    string
	Confidence Confidence
	Evidence   string
	Invite     string
	Note       string
}
