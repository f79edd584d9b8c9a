package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/scale"
)

// PostgresMoodRepo はPostgreSQLを使用した気分チェックインリポジトリ。
// legacyScaleがtrueの場合、mood_scoreを旧スケール（-2..2）で読み書きする。
type PostgresMoodRepo struct {
	db          *sql.DB
	legacyScale bool
}

// NewPostgresMoodRepo はPostgresMoodRepoを生成する。
func NewPostgresMoodRepo(db *sql.DB, legacyScale bool) *PostgresMoodRepo {
	return &PostgresMoodRepo{db: db, legacyScale: legacyScale}
}

// ListByUserAndRange はfrom以上to以下の暦日のチェックインを日付昇順で返す。
func (r *PostgresMoodRepo) ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.MoodSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, mood_score, intensity, tags, note, created_at, updated_at
		 FROM mood_entries
		 WHERE user_id = $1 AND date >= $2::date AND date <= $3::date
		 ORDER BY date ASC`,
		userID, model.DayKey(from), model.DayKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mood entries: %w", err)
	}
	defer rows.Close()

	var samples []model.MoodSample
	for rows.Next() {
		var s model.MoodSample
		var score int
		var note sql.NullString
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Date, &score, &s.Intensity,
			pq.Array(&s.Tags), &note, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mood entry: %w", err)
		}
		s.MoodScore = r.fromStored(score)
		s.Intensity = scale.Clamp(s.Intensity)
		s.Date = model.Day(s.Date)
		s.Note = note.String
		if s.Tags == nil {
			s.Tags = []string{}
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mood entries: %w", err)
	}

	return samples, nil
}

// Upsert は(user_id, date)単位でチェックインを作成または上書きする。
func (r *PostgresMoodRepo) Upsert(ctx context.Context, sample *model.MoodSample) error {
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	now := time.Now()
	tags := sample.Tags
	if tags == nil {
		tags = []string{}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO mood_entries (id, user_id, date, mood_score, intensity, tags, note, created_at, updated_at)
		 VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (user_id, date) DO UPDATE SET
		   mood_score = EXCLUDED.mood_score,
		   intensity = EXCLUDED.intensity,
		   tags = EXCLUDED.tags,
		   note = EXCLUDED.note,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at`,
		sample.ID, sample.UserID, model.DayKey(sample.Date), r.toStored(sample.MoodScore), sample.Intensity,
		pq.Array(tags), nullString(sample.Note), now,
	).Scan(&sample.ID, &sample.CreatedAt, &sample.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert mood entry: %w", err)
	}
	return nil
}

// ListActiveUserIDs はsince以降にチェックインのあるユーザーIDを返す。
func (r *PostgresMoodRepo) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM mood_entries WHERE date >= $1::date ORDER BY user_id`,
		model.DayKey(since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}
	return ids, nil
}

// DeleteByUserID はユーザーの全チェックインを削除する。
func (r *PostgresMoodRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mood_entries WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete mood entries: %w", err)
	}
	return nil
}

// toStored は正規スケールの値を保存用のスケールに変換する。
func (r *PostgresMoodRepo) toStored(canonical int) int {
	if r.legacyScale {
		return scale.Denormalize(canonical)
	}
	return scale.Clamp(canonical)
}

// fromStored は保存された値を正規スケールに変換する。
func (r *PostgresMoodRepo) fromStored(stored int) int {
	if r.legacyScale {
		return scale.Normalize(float64(stored))
	}
	return scale.Clamp(stored)
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ MoodRepository = (*PostgresMoodRepo)(nil)
