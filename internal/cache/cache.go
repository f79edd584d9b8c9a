// Package cache はインサイトレポートのキャッシュを提供する。
//
// キャッシュはユーザー単位の世代番号で無効化する。Lookupで得た世代番号をStoreに渡すため、
// 計算中にInvalidateされたレポートは古い世代のキーに書かれ、以後読まれることはない。
package cache

import (
	"context"
	"time"
)

// Lookup はキャッシュ参照の結果。
type Lookup struct {
	Data    []byte
	Version int64
	Hit     bool
}

// ReportCache はレポートキャッシュのインターフェース。
type ReportCache interface {
	// Lookup は(userID, rangeDays)のキャッシュを取得する。
	// ミス時もStoreに渡す現在の世代番号を返す。
	Lookup(ctx context.Context, userID string, rangeDays int) (Lookup, error)

	// Store は指定世代のキャッシュを書き込む。
	Store(ctx context.Context, userID string, rangeDays int, version int64, data []byte) error

	// Invalidate はユーザーの全レポートキャッシュを無効化する。
	Invalidate(ctx context.Context, userID string) error
}

// Noop は何もキャッシュしないReportCache。
type Noop struct{}

// Lookup は常にミスを返す。
func (Noop) Lookup(ctx context.Context, userID string, rangeDays int) (Lookup, error) {
	return Lookup{}, nil
}

// Store は何もしない。
func (Noop) Store(ctx context.Context, userID string, rangeDays int, version int64, data []byte) error {
	return nil
}

// Invalidate は何もしない。
func (Noop) Invalidate(ctx context.Context, userID string) error {
	return nil
}

// compile-time interface check
var _ ReportCache = Noop{}

// defaultTTL はTTL未指定時の有効期間。
const defaultTTL = 15 * time.Minute
