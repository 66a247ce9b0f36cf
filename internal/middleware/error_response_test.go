package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/sporthub/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusConflict, model.NewEventFullError("e1"))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeEventFull {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEventFull)
	}
	if body.Message == "" || body.Category == "" || body.Action == "" {
		t.Errorf("all fields should be populated: %+v", body)
	}
}

func TestErrorResponseBody_AllFieldsPresent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{Code: "CODE"})

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	// 空文字でもキーは省略しない
	for _, field := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
		wantCat    string
	}{
		{"内部エラー", WriteInternalServerError, http.StatusInternalServerError, model.ErrCodeInternal, "system"},
		{"CSRF検証失敗", WriteCSRFError, http.StatusForbidden, model.ErrCodeCSRFInvalid, "auth"},
		{"レート制限", func(w http.ResponseWriter) { WriteRateLimitError(w, "6") }, http.StatusTooManyRequests, model.ErrCodeRateLimited, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Category != tt.wantCat {
				t.Errorf("category = %q, want %q", body.Category, tt.wantCat)
			}
			if body.Action == "" {
				t.Error("action should not be empty")
			}
		})
	}
}

func TestWriteRateLimitError_SetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()

	WriteRateLimitError(w, "6")

	if got := w.Header().Get("Retry-After"); got != "6" {
		t.Errorf("Retry-After = %q, want %q", got, "6")
	}
}
