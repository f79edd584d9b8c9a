package synth

import "github.com/hitoshi/moodlens/internal/model"

// Source はカードの出所。
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceLocal     Source = "local"
)

// SelectSource は保存済みのカードがあればそれを、なければローカル生成のカードを選ぶ。
// 選んだ集合はMaxRuleCards件に切り詰めたコピーを返す。
func SelectSource(persisted, local []model.InsightCard) ([]model.InsightCard, Source) {
	chosen, src := local, SourceLocal
	if len(persisted) > 0 {
		chosen, src = persisted, SourcePersisted
	}
	if len(chosen) > MaxRuleCards {
		chosen = chosen[:MaxRuleCards]
	}
	out := make([]model.InsightCard, len(chosen))
	copy(out, chosen)
	return out, src
}
