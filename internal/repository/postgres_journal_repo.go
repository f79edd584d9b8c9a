package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/moodlens/internal/model"
)

// PostgresJournalRepo はPostgreSQLを使用したジャーナルリポジトリ。
type PostgresJournalRepo struct {
	db *sql.DB
}

// NewPostgresJournalRepo はPostgresJournalRepoを生成する。
func NewPostgresJournalRepo(db *sql.DB) *PostgresJournalRepo {
	return &PostgresJournalRepo{db: db}
}

const journalColumns = `id, user_id, date, text, prompt, created_at`

// ListByUserAndRange はfrom以上to以下の暦日のエントリーを返す。
func (r *PostgresJournalRepo) ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.JournalSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+journalColumns+`
		 FROM journal_entries
		 WHERE user_id = $1 AND date >= $2::date AND date <= $3::date
		 ORDER BY date ASC, created_at ASC`,
		userID, model.DayKey(from), model.DayKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	return scanJournalRows(rows)
}

// Create はエントリーを作成する。
func (r *PostgresJournalRepo) Create(ctx context.Context, entry *model.JournalSample) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, user_id, date, text, prompt, created_at)
		 VALUES ($1, $2, $3::date, $4, $5, $6)`,
		entry.ID, entry.UserID, model.DayKey(entry.Date), entry.Text, nullString(entry.Prompt), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create journal entry: %w", err)
	}
	return nil
}

// FindByID はユーザーのエントリーを取得する。見つからない場合はnilを返す。
func (r *PostgresJournalRepo) FindByID(ctx context.Context, userID, id string) (*model.JournalSample, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var e model.JournalSample
	var prompt sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&e.ID, &e.UserID, &e.Date, &e.Text, &prompt, &e.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find journal entry: %w", err)
	}
	e.Prompt = prompt.String
	e.Date = model.Day(e.Date)
	return &e, nil
}

// Search は本文またはプロンプトにqueryを含むエントリーを新しい順にlimit件まで返す。
func (r *PostgresJournalRepo) Search(ctx context.Context, userID, query string, limit int) ([]model.JournalSample, error) {
	query = strings.TrimSpace(query)
	pattern := "%" + escapeLike(query) + "%"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+journalColumns+`
		 FROM journal_entries
		 WHERE user_id = $1
		   AND ($2 = '' OR text ILIKE $3 OR COALESCE(prompt, '') ILIKE $3)
		 ORDER BY date DESC, created_at DESC
		 LIMIT $4`,
		userID, query, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search journal entries: %w", err)
	}
	defer rows.Close()

	return scanJournalRows(rows)
}

// DeleteByUserID はユーザーの全エントリーを削除する。
func (r *PostgresJournalRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM journal_entries WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete journal entries: %w", err)
	}
	return nil
}

func scanJournalRows(rows *sql.Rows) ([]model.JournalSample, error) {
	var entries []model.JournalSample
	for rows.Next() {
		var e model.JournalSample
		var prompt sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Text, &prompt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Prompt = prompt.String
		e.Date = model.Day(e.Date)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal entries: %w", err)
	}
	return entries, nil
}

// escapeLike はLIKEパターンの特殊文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// compile-time interface check
var _ JournalRepository = (*PostgresJournalRepo)(nil)
