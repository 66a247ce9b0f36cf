// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// プロフィールの文字列項目の上限（文字数）。usersテーブルのカラム長と一致させる。
const (
	MaxNameLength  = 100
	MaxEmailLength = 255
)

// User はアプリ利用者のプロフィールを表す。
// 編集時はレコード全体を差し替える。
type User struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	ProfileImageURL   string          `json:"profile_image_url,omitempty"`
	Interests         []SportCategory `json:"interests"`
	JoinDate          time.Time       `json:"join_date"`
	TotalEventsJoined int             `json:"total_events_joined"`
	IsOrganizer       bool            `json:"is_organizer"`
}

// AuthProvider は認証プロバイダーを表す。
type AuthProvider string

const (
	AuthProviderEmail    AuthProvider = "email"
	AuthProviderApple    AuthProvider = "apple"
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderFacebook AuthProvider = "facebook"
)

// DisplayName は表示用のプロバイダー名を返す。
func (p AuthProvider) DisplayName() string {
	switch p {
	case AuthProviderEmail:
		return "Email"
	case AuthProviderApple:
		return "Apple"
	case AuthProviderGoogle:
		return "Google"
	case AuthProviderFacebook:
		return "Facebook"
	default:
		return string(p)
	}
}

// ParseAuthProvider は文字列をAuthProviderに変換する。
func ParseAuthProvider(s string) (AuthProvider, error) {
	switch p := AuthProvider(s); p {
	case AuthProviderEmail, AuthProviderApple, AuthProviderGoogle, AuthProviderFacebook:
		return p, nil
	default:
		return "", fmt.Errorf("unknown auth provider: %q", s)
	}
}

// AuthUser はサインインフローで生成される認証済みユーザーを表す。
// クライアントごとの保存領域にJSONとして永続化される。
type AuthUser struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	ProfileImageURL string       `json:"profile_image_url,omitempty"`
	AuthProvider    AuthProvider `json:"auth_provider"`
	IsEmailVerified bool         `json:"is_email_verified"`
	CreatedAt       time.Time    `json:"created_at"`
	LastLoginAt     time.Time    `json:"last_login_at"`
}
