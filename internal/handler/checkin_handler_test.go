package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/moodlens/internal/middleware"
	"github.com/hitoshi/moodlens/internal/model"
)

// --- モック ---

type mockCheckinService struct {
	recordMoodFn    func(ctx context.Context, userID string, req moodRequest) (*moodResponse, error)
	listMoodsFn     func(ctx context.Context, userID string, days int) ([]moodResponse, error)
	recordJournalFn func(ctx context.Context, userID string, req journalRequest) (*journalResponse, error)
	listJournalFn   func(ctx context.Context, userID, query string) ([]journalResponse, error)
	getJournalFn    func(ctx context.Context, userID, id string) (*journalResponse, error)
}

func (m *mockCheckinService) RecordMood(ctx context.Context, userID string, req moodRequest) (*moodResponse, error) {
	return m.recordMoodFn(ctx, userID, req)
}
func (m *mockCheckinService) ListMoods(ctx context.Context, userID string, days int) ([]moodResponse, error) {
	return m.listMoodsFn(ctx, userID, days)
}
func (m *mockCheckinService) RecordJournal(ctx context.Context, userID string, req journalRequest) (*journalResponse, error) {
	return m.recordJournalFn(ctx, userID, req)
}
func (m *mockCheckinService) ListJournal(ctx context.Context, userID, query string) ([]journalResponse, error) {
	return m.listJournalFn(ctx, userID, query)
}
func (m *mockCheckinService) GetJournal(ctx context.Context, userID, id string) (*journalResponse, error) {
	return m.getJournalFn(ctx, userID, id)
}

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- テスト ---

func TestCheckinHandler_RecordMood(t *testing.T) {
	var gotReq moodRequest
	svc := &mockCheckinService{
		recordMoodFn: func(ctx context.Context, userID string, req moodRequest) (*moodResponse, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q", userID)
			}
			gotReq = req
			return &moodResponse{ID: "m-1", Date: "2026-05-01", MoodScore: 4, Intensity: 3, Tags: []string{"work"}}, nil
		},
	}
	h := NewCheckinHandler(svc, 30)

	body := `{"date":"2026-05-01","score":"4","intensity":3,"tags":["Work"],"note":"ok"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/moods", strings.NewReader(body)), "user-1")
	w := httptest.NewRecorder()
	h.RecordMood(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body=%s", w.Code, w.Body.String())
	}
	if gotReq.Score != "4" || gotReq.Intensity != float64(3) {
		t.Errorf("score/intensity = %#v/%#v", gotReq.Score, gotReq.Intensity)
	}
	var resp moodResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.ID != "m-1" || resp.MoodScore != 4 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCheckinHandler_RecordMood_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"malformed date", `{"date":"yesterday"}`, &model.MalformedSampleError{Field: "date", Value: "yesterday"}, http.StatusBadRequest, model.ErrCodeMalformedSample},
		{"internal", `{}`, errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCheckinService{
				recordMoodFn: func(ctx context.Context, userID string, req moodRequest) (*moodResponse, error) {
					return nil, tt.err
				},
			}
			h := NewCheckinHandler(svc, 30)
			w := httptest.NewRecorder()
			h.RecordMood(w, authed(httptest.NewRequest(http.MethodPost, "/api/moods", strings.NewReader(tt.body)), "user-1"))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := decodeError(t, w).Code; got != tt.wantErr {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestCheckinHandler_Unauthenticated(t *testing.T) {
	h := NewCheckinHandler(&mockCheckinService{}, 30)
	w := httptest.NewRecorder()
	h.ListMoods(w, httptest.NewRequest(http.MethodGet, "/api/moods", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCheckinHandler_ListMoods_Range(t *testing.T) {
	tests := []struct {
		query    string
		wantDays int
		wantCode int
	}{
		{"", 30, http.StatusOK},
		{"?range=7", 7, http.StatusOK},
		{"?range=3", 7, http.StatusOK},
		{"?range=1000", 365, http.StatusOK},
		{"?range=abc", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			gotDays := 0
			svc := &mockCheckinService{
				listMoodsFn: func(ctx context.Context, userID string, days int) ([]moodResponse, error) {
					gotDays = days
					return []moodResponse{}, nil
				},
			}
			h := NewCheckinHandler(svc, 30)
			w := httptest.NewRecorder()
			h.ListMoods(w, authed(httptest.NewRequest(http.MethodGet, "/api/moods"+tt.query, nil), "user-1"))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if gotDays != tt.wantDays {
				t.Errorf("days = %d, want %d", gotDays, tt.wantDays)
			}
		})
	}
}

func TestCheckinHandler_RecordJournal_EmptyText(t *testing.T) {
	svc := &mockCheckinService{
		recordJournalFn: func(ctx context.Context, userID string, req journalRequest) (*journalResponse, error) {
			return nil, model.NewEmptyJournalTextError()
		},
	}
	h := NewCheckinHandler(svc, 30)
	w := httptest.NewRecorder()
	h.RecordJournal(w, authed(httptest.NewRequest(http.MethodPost, "/api/journal", strings.NewReader(`{"text":"  "}`)), "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != model.ErrCodeEmptyJournalText {
		t.Errorf("code = %q", got)
	}
}

func TestCheckinHandler_ListJournal_PassesQuery(t *testing.T) {
	svc := &mockCheckinService{
		listJournalFn: func(ctx context.Context, userID, query string) ([]journalResponse, error) {
			if query != "sleep well" {
				t.Errorf("query = %q", query)
			}
			return []journalResponse{{ID: "j-1", Text: "Did not sleep well"}}, nil
		},
	}
	h := NewCheckinHandler(svc, 30)
	w := httptest.NewRecorder()
	h.ListJournal(w, authed(httptest.NewRequest(http.MethodGet, "/api/journal?q=sleep+well", nil), "user-1"))

	var body struct {
		Entries []journalResponse `json:"entries"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Entries) != 1 || body.Entries[0].ID != "j-1" {
		t.Errorf("entries = %+v", body.Entries)
	}
}

func TestCheckinHandler_GetJournal(t *testing.T) {
	svc := &mockCheckinService{
		getJournalFn: func(ctx context.Context, userID, id string) (*journalResponse, error) {
			if id == "j-1" {
				return &journalResponse{ID: "j-1", Text: "hello"}, nil
			}
			return nil, model.NewJournalNotFoundError(id)
		},
	}
	h := NewCheckinHandler(svc, 30)
	r := chi.NewRouter()
	r.Get("/api/journal/{id}", func(w http.ResponseWriter, req *http.Request) {
		h.GetJournal(w, authed(req, "user-1"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/journal/j-1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("found: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/journal/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", w.Code)
	}
	if got := decodeError(t, w).Code; got != model.ErrCodeJournalNotFound {
		t.Errorf("code = %q", got)
	}
}
