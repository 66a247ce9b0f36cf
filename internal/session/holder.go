package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hitoshi/sporthub/internal/model"
)

// フォームに表示するエラーメッセージ
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgInvalidEmail       = "Please enter a valid email address"
	MsgSignInUnavailable  = "Unable to sign in. Please try again"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)

// identityNamespace は認証ユーザーIDの導出に使う名前空間。
// 同じプロバイダーとメールアドレスの組は常に同じIDになる。
var identityNamespace = uuid.MustParse("3f0b7e4c-5d2a-4c61-9a8e-1b6f2d9c7a10")

// providerIdentity はApple/Googleサインインで払い出す固定の利用者。
type providerIdentity struct {
	email string
	name  string
}

var providerIdentities = map[model.AuthProvider]providerIdentity{
	model.AuthProviderApple:  {email: "hafiz@icloud.com", name: "Hafiz Adlan"},
	model.AuthProviderGoogle: {email: "hafiz@gmail.com", name: "Hafiz Adlan"},
}

// Config は認証フローの模擬遅延。
type Config struct {
	RestoreDelay  time.Duration
	EmailDelay    time.Duration
	ProviderDelay time.Duration
}

// DefaultConfig はデフォルトの遅延設定を返す。
func DefaultConfig() Config {
	return Config{
		RestoreDelay:  2 * time.Second,
		EmailDelay:    1500 * time.Millisecond,
		ProviderDelay: time.Second,
	}
}

// Options はHolderの依存関係。未指定の項目はデフォルトを使用する。
type Options struct {
	Config    Config
	Scheduler Scheduler
	Clock     Clock
	Logger    *slog.Logger
	// Provision はAuthenticatedへ遷移する前に呼ばれる。サインインと復元の両方が対象。
	// エラーを返した場合、サインインは失敗し、復元はUnauthenticatedになる。
	Provision func(ctx context.Context, user model.AuthUser) error
	// OnAuthenticated はサインインフローが成功した直後に呼ばれる。復元時は呼ばれない。
	OnAuthenticated func(ctx context.Context, user model.AuthUser)
	// OnFailed はサインインフローが失敗した直後に呼ばれる。
	OnFailed func(ctx context.Context, provider model.AuthProvider)
}

// Snapshot はある時点のHolderの状態。
type Snapshot struct {
	State                    State
	User                     *model.AuthUser
	IsLoading                bool
	ErrorMessage             string
	HasCompletedIntroduction bool
}

// Holder は1クライアント分の認証状態を保持する。
// 認証フローは同時に1つだけ実行でき、SignOutは実行中のフローの結果を破棄する。
type Holder struct {
	store  Store
	sched  Scheduler
	clock  Clock
	cfg    Config
	logger *slog.Logger

	provision       func(ctx context.Context, user model.AuthUser) error
	onAuthenticated func(ctx context.Context, user model.AuthUser)
	onFailed        func(ctx context.Context, provider model.AuthProvider)

	mu        sync.Mutex
	state     State
	user      *model.AuthUser
	loading   bool
	restoring bool
	errMsg    string
	introDone bool
	gen       uint64
	subs      map[uint64]func(Snapshot)
	nextSub   uint64
}

// NewHolder はLoading状態のHolderを生成する。復元はStartで開始する。
func NewHolder(store Store, opts Options) *Holder {
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Holder{
		store:           store,
		sched:           opts.Scheduler,
		clock:           opts.Clock,
		cfg:             opts.Config,
		logger:          opts.Logger,
		provision:       opts.Provision,
		onAuthenticated: opts.OnAuthenticated,
		onFailed:        opts.OnFailed,
		state:           Loading{},
		restoring:       true,
		subs:            make(map[uint64]func(Snapshot)),
	}
}

// Start は紹介画面の完了フラグを読み込み、RestoreDelay経過後に保存済みユーザーを復元する。
func (h *Holder) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	done, err := h.store.LoadIntroduction(ctx)
	if err != nil {
		h.logger.Warn("failed to load introduction flag", slog.String("error", err.Error()))
	}

	h.mu.Lock()
	h.introDone = done
	gen := h.gen
	h.mu.Unlock()

	h.sched.AfterFunc(h.cfg.RestoreDelay, func() { h.restore(ctx, gen) })
}

func (h *Holder) restore(ctx context.Context, gen uint64) {
	if !h.current(gen) {
		return
	}

	user, err := h.store.LoadUser(ctx)
	if err != nil {
		h.logger.Warn("failed to load saved user", slog.String("error", err.Error()))
	}
	if user != nil {
		if err := h.provisionUser(ctx, *user); err != nil {
			h.logger.Warn("saved user not restored",
				slog.String("auth_user_id", user.ID),
				slog.String("error", err.Error()),
			)
			user = nil
		}
	}

	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.restoring = false
	if user != nil {
		h.user = user
		h.state = Authenticated{User: *user}
	} else {
		h.state = Unauthenticated{}
	}
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(snap)
}

// SignInWithEmail はEmailDelay経過後にメールアドレスとパスワードを検証してサインインする。
// 検証は「@」を含むことと6文字以上のパスワードのみ。
func (h *Holder) SignInWithEmail(ctx context.Context, email, password string) error {
	gen, err := h.begin()
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	h.sched.AfterFunc(h.cfg.EmailDelay, func() {
		if !validCredentials(email, password) {
			h.fail(ctx, gen, model.AuthProviderEmail, MsgInvalidCredentials)
			return
		}
		h.succeed(ctx, gen, h.newUser(email, nameFromEmail(email), model.AuthProviderEmail, true))
	})
	return nil
}

// SignUpWithEmail はEmailDelay経過後にメールアドレスの形式を検証して登録する。
// 登録直後のユーザーはメール未確認として扱う。
func (h *Holder) SignUpWithEmail(ctx context.Context, email, password, name string) error {
	gen, err := h.begin()
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	h.sched.AfterFunc(h.cfg.EmailDelay, func() {
		if !emailPattern.MatchString(email) {
			h.fail(ctx, gen, model.AuthProviderEmail, MsgInvalidEmail)
			return
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = nameFromEmail(email)
		}
		h.succeed(ctx, gen, h.newUser(email, name, model.AuthProviderEmail, false))
	})
	return nil
}

// SignInWithApple はProviderDelay経過後に固定の利用者でサインインする。
func (h *Holder) SignInWithApple(ctx context.Context) error {
	return h.signInWithProvider(ctx, model.AuthProviderApple)
}

// SignInWithGoogle はProviderDelay経過後に固定の利用者でサインインする。
func (h *Holder) SignInWithGoogle(ctx context.Context) error {
	return h.signInWithProvider(ctx, model.AuthProviderGoogle)
}

func (h *Holder) signInWithProvider(ctx context.Context, provider model.AuthProvider) error {
	gen, err := h.begin()
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	identity := providerIdentities[provider]

	h.sched.AfterFunc(h.cfg.ProviderDelay, func() {
		h.succeed(ctx, gen, h.newUser(identity.email, identity.name, provider, true))
	})
	return nil
}

// SignOut は現在のユーザーと紹介画面の完了フラグを消去し、Unauthenticatedに遷移する。
// 実行中のフローや復元の結果は破棄される。
func (h *Holder) SignOut(ctx context.Context) error {
	h.mu.Lock()
	h.gen++
	h.loading = false
	h.restoring = false
	h.errMsg = ""
	h.user = nil
	h.introDone = false
	h.state = Unauthenticated{}
	err := errors.Join(h.store.ClearUser(ctx), h.store.ClearIntroduction(ctx))
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(snap)
	if err != nil {
		return fmt.Errorf("failed to clear saved session: %w", err)
	}
	return nil
}

// CompleteOnboarding はOnboardingに遷移する。
func (h *Holder) CompleteOnboarding() {
	h.mu.Lock()
	h.state = Onboarding{}
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(snap)
}

// CompleteIntroduction は紹介画面の完了フラグを立てて保存する。
func (h *Holder) CompleteIntroduction(ctx context.Context) error {
	h.mu.Lock()
	h.introDone = true
	err := h.store.SaveIntroduction(ctx, true)
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(snap)
	if err != nil {
		return fmt.Errorf("failed to save introduction flag: %w", err)
	}
	return nil
}

// Snapshot は現在の状態を返す。
func (h *Holder) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Busy は認証フローまたは復元が実行中かを返す。
func (h *Holder) Busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading || h.restoring
}

// Subscribe は状態遷移ごとにfnへSnapshotを通知する。戻り値の関数で購読を解除する。
func (h *Holder) Subscribe(fn func(Snapshot)) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// begin はフローを開始する。別のフローまたは復元が実行中の場合はAUTH_IN_PROGRESSを返す。
func (h *Holder) begin() (uint64, error) {
	h.mu.Lock()
	if h.loading || h.restoring {
		h.mu.Unlock()
		return 0, model.NewAuthInProgressError()
	}
	h.gen++
	h.loading = true
	h.errMsg = ""
	gen := h.gen
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(snap)
	return gen, nil
}

// succeed はProvisionを済ませてからAuthenticatedへ遷移する。
// Provision中もloadingのままなので、他のリクエストからはフロー実行中に見える。
func (h *Holder) succeed(ctx context.Context, gen uint64, user model.AuthUser) {
	if !h.current(gen) {
		return
	}
	if err := h.provisionUser(ctx, user); err != nil {
		h.logger.Error("failed to provision signed-in user",
			slog.String("auth_user_id", user.ID),
			slog.String("error", err.Error()),
		)
		h.fail(ctx, gen, user.AuthProvider, MsgSignInUnavailable)
		return
	}

	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	if err := h.store.SaveUser(ctx, user); err != nil {
		h.logger.Warn("failed to save user", slog.String("error", err.Error()))
	}
	h.loading = false
	h.user = &user
	h.state = Authenticated{User: user}
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.logger.Info("signed in",
		slog.String("auth_user_id", user.ID),
		slog.String("provider", string(user.AuthProvider)),
	)
	h.publish(snap)
	if h.onAuthenticated != nil {
		h.onAuthenticated(ctx, user)
	}
}

func (h *Holder) fail(ctx context.Context, gen uint64, provider model.AuthProvider, msg string) {
	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.loading = false
	h.errMsg = msg
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(snap)
	if h.onFailed != nil {
		h.onFailed(ctx, provider)
	}
}

// current はgenが最新の世代かを返す。
func (h *Holder) current(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return gen == h.gen
}

func (h *Holder) provisionUser(ctx context.Context, user model.AuthUser) error {
	if h.provision == nil {
		return nil
	}
	return h.provision(ctx, user)
}

func (h *Holder) publish(snap Snapshot) {
	h.mu.Lock()
	fns := make([]func(Snapshot), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (h *Holder) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:                    h.state,
		IsLoading:                h.loading,
		ErrorMessage:             h.errMsg,
		HasCompletedIntroduction: h.introDone,
	}
	if h.user != nil {
		u := *h.user
		snap.User = &u
	}
	return snap
}

func (h *Holder) newUser(email, name string, provider model.AuthProvider, verified bool) model.AuthUser {
	now := h.clock()
	key := string(provider) + ":" + strings.ToLower(email)
	return model.AuthUser{
		ID:              uuid.NewSHA1(identityNamespace, []byte(key)).String(),
		Email:           email,
		Name:            name,
		AuthProvider:    provider,
		IsEmailVerified: verified,
		CreatedAt:       now,
		LastLoginAt:     now,
	}
}

func validCredentials(email, password string) bool {
	return strings.Contains(email, "@") && utf8.RuneCountInString(password) >= minPasswordLength
}

// nameFromEmail はメールアドレスのローカル部を先頭大文字にして表示名とする。
func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "User"
	}
	return cases.Title(language.Und).String(local)
}
