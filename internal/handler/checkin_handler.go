package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/model"
)

// maxBodyBytes はチェックインのリクエストボディ上限。
const maxBodyBytes = 64 << 10

// CheckinServiceInterface はチェックインハンドラーが必要とするサービスインターフェース。
type CheckinServiceInterface interface {
	RecordMood(ctx context.Context, userID string, req moodRequest) (*moodResponse, error)
	ListMoods(ctx context.Context, userID string, days int) ([]moodResponse, error)
	RecordJournal(ctx context.Context, userID string, req journalRequest) (*journalResponse, error)
	ListJournal(ctx context.Context, userID, query string) ([]journalResponse, error)
	GetJournal(ctx context.Context, userID, id string) (*journalResponse, error)
}

// moodRequest は気分チェックインのリクエストボディ。
// score、intensityは数値または数値文字列を受け付ける。
type moodRequest struct {
	Date      string   `json:"date"`
	Score     any      `json:"score"`
	Intensity any      `json:"intensity"`
	Tags      []string `json:"tags"`
	Note      string   `json:"note"`
}

type moodResponse struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	MoodScore int       `json:"mood_score"`
	Intensity int       `json:"intensity"`
	Tags      []string  `json:"tags"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type journalRequest struct {
	Date   string `json:"date"`
	Text   string `json:"text"`
	Prompt string `json:"prompt"`
}

type journalResponse struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Text      string    `json:"text"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckinHandler は気分チェックインとジャーナルのHTTPハンドラー。
type CheckinHandler struct {
	service     CheckinServiceInterface
	defaultDays int
}

// NewCheckinHandler はCheckinHandlerを生成する。
func NewCheckinHandler(service CheckinServiceInterface, defaultDays int) *CheckinHandler {
	return &CheckinHandler{service: service, defaultDays: defaultDays}
}

// RecordMood は気分チェックインを記録する。同じ日の記録は上書きされる。
// POST /api/moods
func (h *CheckinHandler) RecordMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req moodRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.RecordMood(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ListMoods は期間内のチェックインを日付昇順で返す。
// GET /api/moods?range=30
func (h *CheckinHandler) ListMoods(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, err := insight.ParseRange(r.URL.Query().Get("range"), h.defaultDays)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	moods, err := h.service.ListMoods(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"range_days": days,
		"moods":      moods,
	})
}

// RecordJournal はジャーナルエントリーを記録する。
// POST /api/journal
func (h *CheckinHandler) RecordJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req journalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.RecordJournal(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ListJournal はジャーナルを新しい順に返す。qで本文とプロンプトを検索する。
// GET /api/journal?q=
func (h *CheckinHandler) ListJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListJournal(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
	})
}

// GetJournal はジャーナルエントリーを1件返す。
// GET /api/journal/{id}
func (h *CheckinHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetJournal(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeBody はJSONボディをdstにデコードする。失敗時は400を書き込みfalseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}
