// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, checkin, insight, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidRange     = "INVALID_RANGE"
	ErrCodeMalformedSample  = "MALFORMED_SAMPLE"
	ErrCodeEmptyJournalText = "EMPTY_JOURNAL_TEXT"
	ErrCodeJournalNotFound  = "JOURNAL_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewInvalidRangeError は集計期間の指定が数値でない場合のエラーを生成する。
func NewInvalidRangeError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRange,
		Message:  fmt.Sprintf("Invalid range: %s", raw),
		Category: "validation",
		Action:   "Pass range as a number of days between 7 and 365.",
	}
}

// NewEmptyJournalTextError はジャーナル本文が空の場合のエラーを生成する。
func NewEmptyJournalTextError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyJournalText,
		Message:  "Journal text is required.",
		Category: "checkin",
		Action:   "Write at least a few words before saving.",
	}
}

// NewJournalNotFoundError はジャーナルが見つからない場合のエラーを生成する。
func NewJournalNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeJournalNotFound,
		Message:  fmt.Sprintf("Journal entry not found: %s", id),
		Category: "checkin",
		Action:   "Check the entry ID.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Sign in.",
	}
}

// MalformedSampleError は日付などサンプルの必須項目が解釈できない場合のエラー。
// 数値項目は拒否せず範囲内に丸めるため、このエラーは日付にのみ使われる。
type MalformedSampleError struct {
	Field string
	Value string
}

// Error はerrorインターフェースを実装する。
func (e *MalformedSampleError) Error() string {
	return fmt.Sprintf("malformed sample: %s=%q", e.Field, e.Value)
}

// APIError はハンドラー向けの統一エラーに変換する。
func (e *MalformedSampleError) APIError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedSample,
		Message:  fmt.Sprintf("Could not read %s: %q", e.Field, e.Value),
		Category: "validation",
		Action:   "Dates must be in YYYY-MM-DD format.",
	}
}

// PersistenceError はインサイトの置換保存に失敗したことを表す。
// 生成済みのカードは呼び出し元に返されるため、致命的なエラーではない。
type PersistenceError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed (%s): %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
