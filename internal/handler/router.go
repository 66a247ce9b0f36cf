package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sporthub/internal/metrics"
	"github.com/hitoshi/sporthub/internal/middleware"
)

// HealthChecker は依存先の疎通確認インターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
	HealthChecker  HealthChecker

	// ミドルウェア依存
	CORSAllowedOrigin string
	ClientConfig      middleware.ClientConfig
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	Sessions     SessionProvider
	AuthResolver middleware.AuthUserResolver

	// カタログ
	EventService    EventServiceInterface
	ActivityService ActivityServiceInterface

	// プロフィール
	ProfileService ProfileServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Client → RateLimit(General) → CSRF → RequireAuth
//
// /health と /metrics はクライアント識別より外側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.Sessions)
	eventHandler := NewEventHandler(deps.EventService)
	activityHandler := NewActivityHandler(deps.ActivityService)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.Sessions)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.ClientConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// --- 認証フロー ---
		r.Route("/auth", func(r chi.Router) {
			r.Get("/state", authHandler.State)
			r.Post("/email/signin", authHandler.EmailSignIn)
			r.Post("/email/signup", authHandler.EmailSignUp)
			r.Post("/apple", authHandler.Apple)
			r.Post("/google", authHandler.Google)
			r.Post("/signout", authHandler.SignOut)
			r.Post("/onboarding", authHandler.CompleteOnboarding)
			r.Post("/introduction", authHandler.CompleteIntroduction)
		})

		// --- 認証不要のカタログ参照 ---
		r.Get("/api/events", eventHandler.ListEvents)
		r.Get("/api/events/{id}", eventHandler.GetEvent)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireAuthMiddleware(deps.AuthResolver))

			r.Post("/api/events", eventHandler.CreateEvent)
			// イベント参加は専用レート制限を追加
			r.With(deps.RateLimiter.JoinMiddleware()).Post("/api/events/{id}/join", eventHandler.JoinEvent)

			r.Get("/api/activities", activityHandler.ListActivities)
			r.Get("/api/activities/stats", activityHandler.Stats)

			r.Get("/api/profile", profileHandler.GetProfile)
			r.Put("/api/profile", profileHandler.UpdateProfile)
			r.Delete("/api/profile", profileHandler.Withdraw)
		})
	})

	return r
}

// healthHandler は疎通確認の結果を返すハンドラーを生成する。
// checkerがnilの場合（インメモリ構成）は常にokを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
