package handler

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/moodlens/internal/checkin"
	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/user"
)

const dateLayout = "2006-01-02"

// CheckinServiceAdapter は checkin.Service を CheckinServiceInterface に適合させるアダプタ。
type CheckinServiceAdapter struct {
	svc *checkin.Service
}

// NewCheckinServiceAdapter はCheckinServiceAdapterを生成する。
func NewCheckinServiceAdapter(svc *checkin.Service) *CheckinServiceAdapter {
	return &CheckinServiceAdapter{svc: svc}
}

// RecordMood はリクエストを入力型に変換して記録する。
func (a *CheckinServiceAdapter) RecordMood(ctx context.Context, userID string, req moodRequest) (*moodResponse, error) {
	sample, err := a.svc.RecordMood(ctx, userID, checkin.MoodInput{
		Date:      req.Date,
		Score:     checkin.ParseScore(req.Score),
		Intensity: checkin.ParseScore(req.Intensity),
		Tags:      req.Tags,
		Note:      req.Note,
	})
	if err != nil {
		return nil, err
	}
	resp := toMoodResponse(*sample)
	return &resp, nil
}

// ListMoods は期間内のチェックインをレスポンス型で返す。
func (a *CheckinServiceAdapter) ListMoods(ctx context.Context, userID string, days int) ([]moodResponse, error) {
	samples, err := a.svc.ListMoods(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	results := make([]moodResponse, len(samples))
	for i, s := range samples {
		results[i] = toMoodResponse(s)
	}
	return results, nil
}

// RecordJournal はジャーナルエントリーを記録する。
func (a *CheckinServiceAdapter) RecordJournal(ctx context.Context, userID string, req journalRequest) (*journalResponse, error) {
	entry, err := a.svc.RecordJournal(ctx, userID, checkin.JournalInput{
		Date:   req.Date,
		Text:   req.Text,
		Prompt: req.Prompt,
	})
	if err != nil {
		return nil, err
	}
	resp := toJournalResponse(*entry)
	return &resp, nil
}

// ListJournal はジャーナルを検索する。
func (a *CheckinServiceAdapter) ListJournal(ctx context.Context, userID, query string) ([]journalResponse, error) {
	entries, err := a.svc.ListJournal(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	results := make([]journalResponse, len(entries))
	for i, e := range entries {
		results[i] = toJournalResponse(e)
	}
	return results, nil
}

// GetJournal はエントリーを1件取得する。
func (a *CheckinServiceAdapter) GetJournal(ctx context.Context, userID, id string) (*journalResponse, error) {
	entry, err := a.svc.GetJournal(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	resp := toJournalResponse(*entry)
	return &resp, nil
}

// InsightServiceAdapter は insight.Service を InsightServiceInterface に適合させるアダプタ。
type InsightServiceAdapter struct {
	svc *insight.Service
}

// NewInsightServiceAdapter はInsightServiceAdapterを生成する。
func NewInsightServiceAdapter(svc *insight.Service) *InsightServiceAdapter {
	return &InsightServiceAdapter{svc: svc}
}

// Report はレポートをレスポンス型で返す。
func (a *InsightServiceAdapter) Report(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
	report, err := a.svc.Report(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	resp := toInsightReportResponse(report)
	return &resp, nil
}

// Regenerate は再生成結果をレスポンス型で返す。
// 置換保存に失敗した場合はレスポンスと*model.PersistenceErrorの両方を返す。
func (a *InsightServiceAdapter) Regenerate(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
	report, err := a.svc.Regenerate(ctx, userID, days)
	if report == nil {
		return nil, err
	}
	resp := toInsightReportResponse(report)
	var perr *model.PersistenceError
	if errors.As(err, &perr) {
		resp.Warning = persistenceWarning
	}
	return &resp, err
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Profile はユーザー情報をレスポンス型で返す。
func (a *UserServiceAdapter) Profile(ctx context.Context, userID string) (*userResponse, error) {
	u, err := a.svc.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}, nil
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

func toMoodResponse(s model.MoodSample) moodResponse {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return moodResponse{
		ID:        s.ID,
		Date:      s.Date.Format(dateLayout),
		MoodScore: s.MoodScore,
		Intensity: s.Intensity,
		Tags:      tags,
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toJournalResponse(e model.JournalSample) journalResponse {
	return journalResponse{
		ID:        e.ID,
		Date:      e.Date.Format(dateLayout),
		Text:      e.Text,
		Prompt:    e.Prompt,
		CreatedAt: e.CreatedAt,
	}
}

func toInsightReportResponse(r *insight.Report) insightReportResponse {
	cards := make([]insightCardResponse, len(r.Cards))
	for i, c := range r.Cards {
		cards[i] = insightCardResponse{
			ID:         c.ID,
			Title:      c.Title,
			Message:    c.Message,
			Confidence: string(c.Confidence),
			Evidence:   c.Evidence,
			Invite:     c.Invite,
			Note:       c.Note,
		}
	}

	weekdays := make([]weekdayResponse, len(r.Stats.Weekdays))
	for i, wd := range r.Stats.Weekdays {
		weekdays[i] = weekdayResponse{Weekday: wd.Weekday, Count: wd.Count, Average: wd.Avg}
	}
	tags := make([]tagCountResponse, len(r.Stats.TopTags))
	for i, tc := range r.Stats.TopTags {
		tags[i] = tagCountResponse{Tag: tc.Tag, Count: tc.Count}
	}

	return insightReportResponse{
		RangeDays:   r.RangeDays,
		CheckIns:    r.CheckIns,
		IsSample:    r.IsSample,
		Confidence:  string(r.Confidence),
		Uncertainty: r.Uncertainty,
		Source:      string(r.Source),
		Persisted:   r.Persisted,
		GeneratedAt: r.GeneratedAt.UTC().Truncate(time.Second),
		Cards:       cards,
		Stats: statsResponse{
			Average:        r.Stats.Average,
			Distribution:   r.Stats.Distribution,
			Weekdays:       weekdays,
			BestGoodStreak: r.Stats.BestGoodStreak,
			TopTags:        tags,
		},
	}
}
