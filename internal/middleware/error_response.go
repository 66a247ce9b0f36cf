package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sporthub/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// handlerパッケージのレスポンスと同じJSON形状を持つ。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は500を書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteCSRFError は403を書き込む。
func WriteCSRFError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
}

// WriteRateLimitError は429を書き込む。retryAfterSecはRetry-Afterヘッダーに設定する。
func WriteRateLimitError(w http.ResponseWriter, retryAfterSec string) {
	w.Header().Set("Retry-After", retryAfterSec)
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
