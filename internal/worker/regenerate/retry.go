package regenerate

import "time"

const (
	// initialBackoff は置換保存リトライの初回遅延。
	initialBackoff = 200 * time.Millisecond
	// maxBackoff はリトライ遅延の上限。
	maxBackoff = 5 * time.Second
	// defaultMaxAttempts は1ユーザーあたりの最大試行回数。
	defaultMaxAttempts = 3
)

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回200ms、2倍ずつ増加、最大5秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
