package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/model"
)

// persistenceWarning は再生成結果を保存できなかったときにレスポンスへ添える文言。
const persistenceWarning = "Insights were generated but could not be saved. They will be recomputed next time."

// InsightServiceInterface はインサイトハンドラーが必要とするサービスインターフェース。
type InsightServiceInterface interface {
	Report(ctx context.Context, userID string, days int) (*insightReportResponse, error)
	// Regenerate は保存に失敗した場合もレスポンスと*model.PersistenceErrorを返す。
	Regenerate(ctx context.Context, userID string, days int) (*insightReportResponse, error)
}

type insightReportResponse struct {
	RangeDays   int                   `json:"range_days"`
	CheckIns    int                   `json:"check_ins"`
	IsSample    bool                  `json:"is_sample"`
	Confidence  string                `json:"confidence"`
	Uncertainty string                `json:"uncertainty,omitempty"`
	Source      string                `json:"source"`
	Persisted   bool                  `json:"persisted"`
	Warning     string                `json:"warning,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
	Cards       []insightCardResponse `json:"cards"`
	Stats       statsResponse         `json:"stats"`
}

type insightCardResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Confidence string `json:"confidence,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
	Invite     string `json:"invite,omitempty"`
	Note       string `json:"note,omitempty"`
}

type statsResponse struct {
	Average        float64            `json:"average"`
	Distribution   [5]int             `json:"distribution"`
	Weekdays       []weekdayResponse  `json:"weekdays"`
	BestGoodStreak int                `json:"best_good_streak"`
	TopTags        []tagCountResponse `json:"top_tags"`
}

type weekdayResponse struct {
	Weekday string  `json:"weekday"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

type tagCountResponse struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// InsightHandler はインサイトのHTTPハンドラー。
type InsightHandler struct {
	service     InsightServiceInterface
	defaultDays int
}

// NewInsightHandler はInsightHandlerを生成する。
func NewInsightHandler(service InsightServiceInterface, defaultDays int) *InsightHandler {
	return &InsightHandler{service: service, defaultDays: defaultDays}
}

// GetInsights はインサイトレポートを返す。
// GET /api/insights?range=30
func (h *InsightHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, err := insight.ParseRange(r.URL.Query().Get("range"), h.defaultDays)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.Report(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Regenerate はインサイトを生成し直して保存する。
// 保存に失敗してもカードは返し、persisted=falseと警告を添えて200で応答する。
// POST /api/insights/regenerate?range=30
func (h *InsightHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, err := insight.ParseRange(r.URL.Query().Get("range"), h.defaultDays)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.Regenerate(r.Context(), userID, days)
	if err != nil {
		var perr *model.PersistenceError
		if !errors.As(err, &perr) || resp == nil {
			handleServiceError(w, err)
			return
		}
		slog.Warn("regenerated insights were not persisted",
			slog.String("user_id", userID),
			slog.Int("range_days", days),
			slog.String("error", err.Error()),
		)
		resp.Persisted = false
		if resp.Warning == "" {
			resp.Warning = persistenceWarning
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
