package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func csrfCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethodsPass(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		called := false
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(method, "/api/insights", nil))

		if !called {
			t.Errorf("%s: handler not called", method)
		}
		c := csrfCookieFrom(t, w)
		if c == nil || len(c.Value) != 64 || c.HttpOnly {
			t.Errorf("%s: unexpected csrf cookie %+v", method, c)
		}
	}
}

func TestCSRFMiddleware_ExistingCookieKept(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/moods", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if c := csrfCookieFrom(t, w); c != nil {
		t.Errorf("cookie should not be reissued, got %q", c.Value)
	}
}

func TestCSRFMiddleware_StateChanging(t *testing.T) {
	tests := []struct {
		name   string
		method string
		cookie string
		header string
		want   int
	}{
		{"post valid", http.MethodPost, "tok", "tok", http.StatusOK},
		{"delete valid", http.MethodDelete, "tok", "tok", http.StatusOK},
		{"no cookie", http.MethodPost, "", "tok", http.StatusForbidden},
		{"no header", http.MethodPost, "tok", "", http.StatusForbidden},
		{"mismatch", http.MethodPost, "tok", "other", http.StatusForbidden},
		{"put without token", http.MethodPut, "", "", http.StatusForbidden},
		{"patch without token", http.MethodPatch, "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())
			req := httptest.NewRequest(tt.method, "/api/moods", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				var body ErrorResponseBody
				json.NewDecoder(w.Body).Decode(&body)
				if body.Code != "CSRF_TOKEN_INVALID" {
					t.Errorf("code = %q", body.Code)
				}
			}
		})
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{CookieSecure: true})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c := csrfCookieFrom(t, w)
	if c == nil || c.Value != body.Token || !c.Secure {
		t.Errorf("cookie %+v does not match token %q", c, body.Token)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "kept"})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	json.NewDecoder(w.Body).Decode(&body)
	if body.Token != "kept" {
		t.Errorf("token = %q, want kept", body.Token)
	}
}
