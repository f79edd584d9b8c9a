package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory はプロセス内メモリのReportCache実装。STORAGE_DRIVER=memoryで使う。
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	versions map[string]int64
	entries  map[string]memoryEntry
}

// NewMemory はMemoryキャッシュを生成する。ttlが0以下の場合は15分を使う。
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Memory{
		ttl:      ttl,
		now:      time.Now,
		versions: make(map[string]int64),
		entries:  make(map[string]memoryEntry),
	}
}

// Lookup は現在の世代の有効なエントリーを返す。
func (m *Memory) Lookup(ctx context.Context, userID string, rangeDays int) (Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.versions[userID]
	key := reportKey(userID, v, rangeDays)
	e, ok := m.entries[key]
	if !ok {
		return Lookup{Version: v}, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return Lookup{Version: v}, nil
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return Lookup{Data: data, Version: v, Hit: true}, nil
}

// Store は指定世代のエントリーを書き込む。
func (m *Memory) Store(ctx context.Context, userID string, rangeDays int, version int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.entries[reportKey(userID, version, rangeDays)] = memoryEntry{data: stored, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Invalidate は世代番号を進め、古い世代のエントリーを削除する。
func (m *Memory) Invalidate(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.versions[userID]
	m.versions[userID] = old + 1
	prefix := fmt.Sprintf("%s%s:%d:", keyPrefix, userID, old)
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

// compile-time interface check
var _ ReportCache = (*Memory)(nil)
