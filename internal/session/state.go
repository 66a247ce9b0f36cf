// Package session はクライアント端末ごとの認証状態を保持する。
// 状態遷移はLoading→{Unauthenticated, Authenticated}→Onboardingの粗いライフサイクルで、
// 認証処理の待ち時間は固定の遅延で模擬する。
package session

import "github.com/hitoshi/sporthub/internal/model"

// Phase は状態の種別名。JSONレスポンスやログで使用する。
type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseOnboarding      Phase = "onboarding"
)

// State は認証状態を表す。実装はこのパッケージ内の4型に限られる。
type State interface {
	Phase() Phase
	sealed()
}

// Loading は保存済みユーザーの復元待ち。
type Loading struct{}

// Unauthenticated は未サインイン。
type Unauthenticated struct{}

// Authenticated はサインイン済み。
type Authenticated struct {
	User model.AuthUser
}

// Onboarding は初回設定中。
type Onboarding struct{}

func (Loading) Phase() Phase         { return PhaseLoading }
func (Unauthenticated) Phase() Phase { return PhaseUnauthenticated }
func (Authenticated) Phase() Phase   { return PhaseAuthenticated }
func (Onboarding) Phase() Phase      { return PhaseOnboarding }

func (Loading) sealed()         {}
func (Unauthenticated) sealed() {}
func (Authenticated) sealed()   {}
func (Onboarding) sealed()      {}

// Equal は2つの状態が等しいかを返す。
// Authenticated同士はユーザーIDのみで比較し、名前などの内容差は無視する。
func Equal(a, b State) bool {
	switch x := a.(type) {
	case Authenticated:
		y, ok := b.(Authenticated)
		return ok && x.User.ID == y.User.ID
	case nil:
		return b == nil
	default:
		return b != nil && a.Phase() == b.Phase()
	}
}
