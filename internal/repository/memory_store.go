package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/moodlens/internal/model"
)

// MemoryStore はプロセス内メモリで全データを保持するストア。
// ローカル実行とテストで使う。各リポジトリ実装はMoods()などのアクセサから取得する。
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]model.User
	sessions map[string]model.Session
	moods    map[string]map[string]model.MoodSample // userID -> dayKey -> sample
	journals map[string][]model.JournalSample       // userID -> entries
	insights map[string][]model.InsightCard         // insightKey -> cards
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]model.User),
		sessions: make(map[string]model.Session),
		moods:    make(map[string]map[string]model.MoodSample),
		journals: make(map[string][]model.JournalSample),
		insights: make(map[string][]model.InsightCard),
	}
}

// PutUser はユーザーを登録する。
func (s *MemoryStore) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutSession はセッションを登録する。
func (s *MemoryStore) PutSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Users はUserRepositoryとしてのビューを返す。
func (s *MemoryStore) Users() *MemoryUserRepo { return &MemoryUserRepo{s: s} }

// Sessions はSessionRepositoryとしてのビューを返す。
func (s *MemoryStore) Sessions() *MemorySessionRepo { return &MemorySessionRepo{s: s} }

// Moods はMoodRepositoryとしてのビューを返す。
func (s *MemoryStore) Moods() *MemoryMoodRepo { return &MemoryMoodRepo{s: s} }

// Journals はJournalRepositoryとしてのビューを返す。
func (s *MemoryStore) Journals() *MemoryJournalRepo { return &MemoryJournalRepo{s: s} }

// Insights はInsightRepositoryとしてのビューを返す。
func (s *MemoryStore) Insights() *MemoryInsightRepo { return &MemoryInsightRepo{s: s} }

// --- users ---

// MemoryUserRepo はMemoryStore上のUserRepository実装。
type MemoryUserRepo struct{ s *MemoryStore }

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// DeleteByID は指定IDのユーザーと関連データを削除する。
func (r *MemoryUserRepo) DeleteByID(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	delete(r.s.users, id)
	delete(r.s.moods, id)
	delete(r.s.journals, id)
	for sid, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, sid)
		}
	}
	prefix := id + ":"
	for key := range r.s.insights {
		if strings.HasPrefix(key, prefix) {
			delete(r.s.insights, key)
		}
	}
	return nil
}

// --- sessions ---

// MemorySessionRepo はMemoryStore上のSessionRepository実装。
type MemorySessionRepo struct{ s *MemoryStore }

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *MemorySessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

// --- moods ---

// MemoryMoodRepo はMemoryStore上のMoodRepository実装。
type MemoryMoodRepo struct{ s *MemoryStore }

// ListByUserAndRange はfrom以上to以下の暦日のチェックインを日付昇順で返す。
func (r *MemoryMoodRepo) ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.MoodSample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	from, to = model.Day(from), model.Day(to)
	var out []model.MoodSample
	for _, m := range r.s.moods[userID] {
		if m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		m.Tags = append([]string{}, m.Tags...)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Upsert は(user_id, date)単位でチェックインを作成または上書きする。
func (r *MemoryMoodRepo) Upsert(ctx context.Context, sample *model.MoodSample) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byDay, ok := r.s.moods[sample.UserID]
	if !ok {
		byDay = make(map[string]model.MoodSample)
		r.s.moods[sample.UserID] = byDay
	}

	now := time.Now()
	sample.Date = model.Day(sample.Date)
	key := model.DayKey(sample.Date)
	if existing, ok := byDay[key]; ok {
		sample.ID = existing.ID
		sample.CreatedAt = existing.CreatedAt
	} else {
		if sample.ID == "" {
			sample.ID = uuid.New().String()
		}
		sample.CreatedAt = now
	}
	sample.UpdatedAt = now

	stored := *sample
	stored.Tags = append([]string{}, sample.Tags...)
	byDay[key] = stored
	return nil
}

// ListActiveUserIDs はsince以降にチェックインのあるユーザーIDを返す。
func (r *MemoryMoodRepo) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	since = model.Day(since)
	var ids []string
	for userID, byDay := range r.s.moods {
		for _, m := range byDay {
			if !m.Date.Before(since) {
				ids = append(ids, userID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteByUserID はユーザーの全チェックインを削除する。
func (r *MemoryMoodRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.moods, userID)
	return nil
}

// --- journals ---

// MemoryJournalRepo はMemoryStore上のJournalRepository実装。
type MemoryJournalRepo struct{ s *MemoryStore }

// ListByUserAndRange はfrom以上to以下の暦日のエントリーを返す。
func (r *MemoryJournalRepo) ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.JournalSample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	from, to = model.Day(from), model.Day(to)
	var out []model.JournalSample
	for _, e := range r.s.journals[userID] {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Create はエントリーを作成する。
func (r *MemoryJournalRepo) Create(ctx context.Context, entry *model.JournalSample) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.Date = model.Day(entry.Date)
	r.s.journals[entry.UserID] = append(r.s.journals[entry.UserID], *entry)
	return nil
}

// FindByID はユーザーのエントリーを取得する。見つからない場合はnilを返す。
func (r *MemoryJournalRepo) FindByID(ctx context.Context, userID, id string) (*model.JournalSample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.journals[userID] {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

// Search は本文またはプロンプトにqueryを含むエントリーを新しい順にlimit件まで返す。
func (r *MemoryJournalRepo) Search(ctx context.Context, userID, query string, limit int) ([]model.JournalSample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.JournalSample
	for _, e := range r.s.journals[userID] {
		if q != "" &&
			!strings.Contains(strings.ToLower(e.Text), q) &&
			!strings.Contains(strings.ToLower(e.Prompt), q) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteByUserID はユーザーの全エントリーを削除する。
func (r *MemoryJournalRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.journals, userID)
	return nil
}

// --- insights ---

// MemoryInsightRepo はMemoryStore上のInsightRepository実装。
type MemoryInsightRepo struct{ s *MemoryStore }

func insightKey(userID string, rangeDays int) string {
	return userID + ":" + strconv.Itoa(rangeDays)
}

// ListByUserAndRange は(user_id, range_days)のカードを表示順に返す。
func (r *MemoryInsightRepo) ListByUserAndRange(ctx context.Context, userID string, rangeDays int) ([]model.InsightCard, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cards := r.s.insights[insightKey(userID, rangeDays)]
	out := make([]model.InsightCard, len(cards))
	copy(out, cards)
	return out, nil
}

// ReplaceInsights は(user_id, range_days)のカードを書き込みロック内で丸ごと置き換える。
func (r *MemoryInsightRepo) ReplaceInsights(ctx context.Context, userID string, rangeDays int, cards []model.InsightCard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]model.InsightCard, len(cards))
	for i, c := range cards {
		stored[i] = model.InsightCard{ID: c.ID, Title: c.Title, Message: c.Message}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.insights[insightKey(userID, rangeDays)] = stored
	return nil
}

// DeleteByUserID はユーザーの全カードを削除する。
func (r *MemoryInsightRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prefix := userID + ":"
	for key := range r.s.insights {
		if strings.HasPrefix(key, prefix) {
			delete(r.s.insights, key)
		}
	}
	return nil
}

// compile-time interface checks
var (
	_ UserRepository    = (*MemoryUserRepo)(nil)
	_ SessionRepository = (*MemorySessionRepo)(nil)
	_ MoodRepository    = (*MemoryMoodRepo)(nil)
	_ JournalRepository = (*MemoryJournalRepo)(nil)
	_ InsightRepository = (*MemoryInsightRepo)(nil)
)
