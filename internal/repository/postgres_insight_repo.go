package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/moodlens/internal/model"
)

// PostgresInsightRepo はPostgreSQLを使用したインサイトリポジトリ。
type PostgresInsightRepo struct {
	db *sql.DB
}

// NewPostgresInsightRepo はPostgresInsightRepoを生成する。
func NewPostgresInsightRepo(db *sql.DB) *PostgresInsightRepo {
	return &PostgresInsightRepo{db: db}
}

// ListByUserAndRange は(user_id, range_days)のカードを表示順に返す。
func (r *PostgresInsightRepo) ListByUserAndRange(ctx context.Context, userID string, rangeDays int) ([]model.InsightCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT card_id, title, message
		 FROM insights
		 WHERE user_id = $1 AND range_days = $2
		 ORDER BY position ASC`,
		userID, rangeDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var cards []model.InsightCard
	for rows.Next() {
		var c model.InsightCard
		if err := rows.Scan(&c.ID, &c.Title, &c.Message); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate insights: %w", err)
	}
	return cards, nil
}

// ReplaceInsights は(user_id, range_days)のカードを1トランザクションで置き換える。
// トランザクションスコープのアドバイザリロックで同じキーへの並行置換を直列化する。
func (r *PostgresInsightRepo) ReplaceInsights(ctx context.Context, userID string, rangeDays int, cards []model.InsightCard) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lockKey := fmt.Sprintf("insights:%s:%d", userID, rangeDays)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("failed to acquire insight lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM insights WHERE user_id = $1 AND range_days = $2`,
		userID, rangeDays,
	); err != nil {
		return fmt.Errorf("failed to delete insights: %w", err)
	}

	now := time.Now()
	for i, c := range cards {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO insights (id, user_id, range_days, position, card_id, title, message, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), userID, rangeDays, i, c.ID, c.Title, c.Message, now,
		); err != nil {
			return fmt.Errorf("failed to insert insight: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全カードを削除する。
func (r *PostgresInsightRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM insights WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete insights: %w", err)
	}
	return nil
}

// compile-time interface check
var _ InsightRepository = (*PostgresInsightRepo)(nil)
