package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func corsRequest(method, origin string, preflight bool) *http.Request {
	req := httptest.NewRequest(method, "/api/events", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	return req
}

func TestCORSMiddleware_AllowedOrigin_SetsHeaders(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000")(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodGet, "http://localhost:3000", false))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "http://localhost:3000"},
		{"Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS"},
		{"Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token"},
		{"Access-Control-Allow-Credentials", "true"},
		{"Access-Control-Max-Age", "86400"},
		{"Vary", "Origin"},
	}
	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORSMiddleware_MultipleOrigins(t *testing.T) {
	handler := NewCORSMiddleware("https://admin.example.com, http://localhost:19006/")(okHandler())

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"1つ目のオリジン", "https://admin.example.com", "https://admin.example.com"},
		{"末尾スラッシュ付きで指定したオリジン", "http://localhost:19006", "http://localhost:19006"},
		{"許可外のオリジン", "https://evil.example.com", ""},
		{"Originヘッダーなし", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, corsRequest(http.MethodGet, tt.origin, false))

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCORSMiddleware_Preflight_Returns204(t *testing.T) {
	handlerCalled := false
	handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodOptions, "http://localhost:3000", true))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if handlerCalled {
		t.Error("next handler should not be called for OPTIONS preflight")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORSMiddleware_DisallowedPreflight_ReachesHandler(t *testing.T) {
	handlerCalled := false
	handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodOptions, "https://evil.example.com", true))

	if !handlerCalled {
		t.Error("許可外オリジンのプリフライトは終端せずハンドラーに渡すべき")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestCORSMiddleware_EmptyConfigDisablesHeaders(t *testing.T) {
	handler := NewCORSMiddleware(" , ")(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodOptions, "http://localhost:3000", true))

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
	if got := w.Header().Get("Vary"); got != "" {
		t.Errorf("Vary = %q, want empty", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("OPTIONS should reach the handler when CORS is disabled, status = %d", w.Code)
	}
}

func TestParseOrigins(t *testing.T) {
	got := parseOrigins(" https://a.example.com/ ,,http://localhost:3000 ")
	want := []string{"https://a.example.com", "http://localhost:3000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseOrigins() mismatch (-want +got):\n%s", diff)
	}
}
