// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/moodlens/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションの発行は外部の認証サービスが行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// MoodRepository は気分チェックインの永続化インターフェース。
type MoodRepository interface {
	// ListByUserAndRange はfrom以上to以下の暦日のチェックインを日付昇順で返す。
	// スコアは正規スケール1..5で返す。
	ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.MoodSample, error)

	// Upsert は(user_id, date)単位でチェックインを作成または上書きする。
	// sample.IDとCreatedAtには保存後の値が設定される。
	Upsert(ctx context.Context, sample *model.MoodSample) error

	// ListActiveUserIDs はsince以降にチェックインのあるユーザーIDを返す。
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	// DeleteByUserID はユーザーの全チェックインを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// JournalRepository はジャーナルエントリーの永続化インターフェース。
type JournalRepository interface {
	// ListByUserAndRange はfrom以上to以下の暦日のエントリーを返す。
	ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.JournalSample, error)

	// Create はエントリーを作成する。
	Create(ctx context.Context, entry *model.JournalSample) error

	// FindByID はユーザーのエントリーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.JournalSample, error)

	// Search は本文またはプロンプトにqueryを含むエントリーを新しい順にlimit件まで返す。
	// 大文字小文字は区別しない。queryが空の場合は全件が対象。
	Search(ctx context.Context, userID, query string, limit int) ([]model.JournalSample, error)

	// DeleteByUserID はユーザーの全エントリーを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// InsightRepository は生成済みインサイトの永続化インターフェース。
type InsightRepository interface {
	// ListByUserAndRange は(user_id, range_days)のカードを表示順に返す。
	ListByUserAndRange(ctx context.Context, userID string, rangeDays int) ([]model.InsightCard, error)

	// ReplaceInsights は(user_id, range_days)のカードを丸ごと置き換える。
	// 削除と挿入は不可分に行われ、同じキーへの並行呼び出しは直列化される。
	ReplaceInsights(ctx context.Context, userID string, rangeDays int, cards []model.InsightCard) error

	// DeleteByUserID はユーザーの全カードを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
