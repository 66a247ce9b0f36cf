// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, event, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEventNotFound   = "EVENT_NOT_FOUND"
	ErrCodeEventFull       = "EVENT_FULL"
	ErrCodeInvalidEvent    = "INVALID_EVENT"
	ErrCodeInvalidFilter   = "INVALID_FILTER"
	ErrCodeInvalidProfile  = "INVALID_PROFILE"
	ErrCodeNotOrganizer    = "NOT_ORGANIZER"
	ErrCodeAuthInProgress  = "AUTH_IN_PROGRESS"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeInvalidMediaURL = "INVALID_MEDIA_URL"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeCSRFInvalid     = "CSRF_INVALID"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定されたイベントが見つかりません: %s", eventID),
		Category: "event",
		Action:   "イベントIDを確認してください。",
	}
}

// NewEventFullError は定員到達エラーを生成する。
func NewEventFullError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventFull,
		Message:  fmt.Sprintf("イベントの定員に達しています: %s", eventID),
		Category: "event",
		Action:   "別のイベントを探してください。",
	}
}

// NewInvalidEventError はイベント入力の検証エラーを生成する。
func NewInvalidEventError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEvent,
		Message:  fmt.Sprintf("イベントの入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "必須項目をすべて入力し、参加人数と価格を確認してください。",
	}
}

// NewInvalidFilterError は無効な検索条件エラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効な検索条件です: %s", filter),
		Category: "validation",
		Action:   "カテゴリ、年齢層、並び順には定義済みの値を指定してください。",
	}
}

// NewInvalidProfileError はプロフィール入力の検証エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールの入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "名前とメールアドレスを確認してください。",
	}
}

// NewNotOrganizerError は主催者権限がない場合のエラーを生成する。
func NewNotOrganizerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotOrganizer,
		Message:  "イベントを作成できるのは主催者のみです。",
		Category: "auth",
		Action:   "プロフィールで主催者として登録してください。",
	}
}

// NewAuthInProgressError は認証処理が実行中の場合のエラーを生成する。
func NewAuthInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthInProgress,
		Message:  "認証処理を実行中です。",
		Category: "auth",
		Action:   "処理の完了を待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidMediaURLError は画像URLの検証エラーを生成する。
func NewInvalidMediaURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMediaURL,
		Message:  fmt.Sprintf("画像URLを利用できません: %s", reason),
		Category: "validation",
		Action:   "公開されているhttpsの画像URLを指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "GET /api/csrf-token でトークンを取得し直してから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
