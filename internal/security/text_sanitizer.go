// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はイベントやプロフィールの自由入力欄からマークアップを取り除く。
// MediaURLChecker は画像URLが外部公開されたものであることを確認する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストの無害化を行うインターフェース。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白は除去し、同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyでタグを除去する実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、StrictPolicyがエスケープした文字実体参照を元に戻す。
// 出力はJSONのテキスト値として返す前提で、HTMLとして埋め込まない。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
