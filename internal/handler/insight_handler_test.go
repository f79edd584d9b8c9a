package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/moodlens/internal/model"
)

type mockInsightService struct {
	reportFn     func(ctx context.Context, userID string, days int) (*insightReportResponse, error)
	regenerateFn func(ctx context.Context, userID string, days int) (*insightReportResponse, error)
}

func (m *mockInsightService) Report(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
	return m.reportFn(ctx, userID, days)
}
func (m *mockInsightService) Regenerate(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
	return m.regenerateFn(ctx, userID, days)
}

func TestInsightHandler_GetInsights(t *testing.T) {
	svc := &mockInsightService{
		reportFn: func(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
			if days != 14 {
				t.Errorf("days = %d, want 14", days)
			}
			return &insightReportResponse{
				RangeDays:  days,
				CheckIns:   12,
				Confidence: "medium",
				Source:     "local",
				Cards:      []insightCardResponse{{ID: "volatility", Title: "t", Message: "m"}},
			}, nil
		},
	}
	h := NewInsightHandler(svc, 30)
	w := httptest.NewRecorder()
	h.GetInsights(w, authed(httptest.NewRequest(http.MethodGet, "/api/insights?range=14", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var raw map[string]any
	json.NewDecoder(w.Body).Decode(&raw)
	for _, key := range []string{"range_days", "check_ins", "is_sample", "confidence", "source", "persisted", "cards", "stats"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := raw["warning"]; ok {
		t.Error("warning should be omitted")
	}
}

func TestInsightHandler_GetInsights_InvalidRange(t *testing.T) {
	h := NewInsightHandler(&mockInsightService{}, 30)
	w := httptest.NewRecorder()
	h.GetInsights(w, authed(httptest.NewRequest(http.MethodGet, "/api/insights?range=week", nil), "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != model.ErrCodeInvalidRange {
		t.Errorf("code = %q", got)
	}
}

func TestInsightHandler_Regenerate_Persisted(t *testing.T) {
	svc := &mockInsightService{
		regenerateFn: func(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
			return &insightReportResponse{RangeDays: days, Source: "persisted", Persisted: true}, nil
		},
	}
	h := NewInsightHandler(svc, 30)
	w := httptest.NewRecorder()
	h.Regenerate(w, authed(httptest.NewRequest(http.MethodPost, "/api/insights/regenerate", nil), "user-1"))

	var resp insightReportResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || !resp.Persisted || resp.RangeDays != 30 {
		t.Errorf("status = %d, resp = %+v", w.Code, resp)
	}
}

// TestInsightHandler_Regenerate_PersistenceFailure は保存失敗でもカードを200で返すことを検証する。
func TestInsightHandler_Regenerate_PersistenceFailure(t *testing.T) {
	svc := &mockInsightService{
		regenerateFn: func(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
			return &insightReportResponse{
					RangeDays: days,
					Source:    "local",
					Cards:     []insightCardResponse{{ID: "weekday-dip"}},
				}, &model.PersistenceError{
					Op:  "replace_insights",
					Err: errors.New("connection reset"),
				}
		},
	}
	h := NewInsightHandler(svc, 30)
	w := httptest.NewRecorder()
	h.Regenerate(w, authed(httptest.NewRequest(http.MethodPost, "/api/insights/regenerate?range=30", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp insightReportResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Persisted {
		t.Error("persisted should be false")
	}
	if resp.Warning == "" {
		t.Error("warning should be set")
	}
	if len(resp.Cards) != 1 || resp.Source != "local" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestInsightHandler_Regenerate_ReadFailure(t *testing.T) {
	svc := &mockInsightService{
		regenerateFn: func(ctx context.Context, userID string, days int) (*insightReportResponse, error) {
			return nil, errors.New("read failed")
		},
	}
	h := NewInsightHandler(svc, 30)
	w := httptest.NewRecorder()
	h.Regenerate(w, authed(httptest.NewRequest(http.MethodPost, "/api/insights/regenerate", nil), "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
