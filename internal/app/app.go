package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/sporthub/internal/backend"
	"github.com/hitoshi/sporthub/internal/catalog"
	"github.com/hitoshi/sporthub/internal/config"
	"github.com/hitoshi/sporthub/internal/database"
	"github.com/hitoshi/sporthub/internal/handler"
	"github.com/hitoshi/sporthub/internal/logger"
	"github.com/hitoshi/sporthub/internal/metrics"
	"github.com/hitoshi/sporthub/internal/middleware"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/repository"
	"github.com/hitoshi/sporthub/internal/security"
	"github.com/hitoshi/sporthub/internal/session"
	"github.com/hitoshi/sporthub/internal/user"
	"github.com/hitoshi/sporthub/internal/worker/cleanup"
	"github.com/hitoshi/sporthub/internal/worker/syncer"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envファイルがあれば環境変数に取り込む（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// help と healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHelp {
		if w == nil {
			w = os.Stdout
		}
		PrintUsage(w)
		return nil
	}
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("in_memory", !cfg.UsesDatabase()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// storage はストレージ構成に応じて生成したリポジトリ群。
type storage struct {
	db         *sql.DB // インメモリ構成の場合はnil
	events     repository.EventRepository
	activities repository.ActivityRepository
	users      repository.UserRepository
	prefs      repository.PreferenceStore
}

// openStorage はDATABASE_URLが設定されていればPostgreSQLに接続し、
// 未設定であればインメモリのリポジトリを生成する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if !cfg.UsesDatabase() {
		slog.Warn("DATABASE_URL is not set; using in-memory storage")
		return &storage{
			events:     repository.NewMemoryEventRepo(),
			activities: repository.NewMemoryActivityRepo(),
			users:      repository.NewMemoryUserRepo(),
			prefs:      repository.NewMemoryPreferenceStore(),
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	return &storage{
		db:         db,
		events:     repository.NewPostgresEventRepo(db),
		activities: repository.NewPostgresActivityRepo(db),
		users:      repository.NewPostgresUserRepo(db),
		prefs:      repository.NewPostgresPreferenceStore(db),
	}, nil
}

// Close はDB接続を閉じる。インメモリ構成では何もしない。
func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// healthChecker はDB接続がある場合のみHealthCheckerを返す。
func (s *storage) healthChecker() handler.HealthChecker {
	if s.db == nil {
		return nil
	}
	return s.db
}

// newSessionOptions は認証フローの設定とコールバックを組み立てる。
// Authenticatedへ遷移する前にプロフィールを用意し、サインインの成否をメトリクスに記録する。
func newSessionOptions(cfg *config.Config, users *user.Service, collector metrics.MetricsCollector) session.Options {
	opts := session.Options{
		Config: session.Config{
			RestoreDelay:  cfg.AuthRestoreDelay,
			EmailDelay:    cfg.AuthEmailDelay,
			ProviderDelay: cfg.AuthProviderDelay,
		},
		Scheduler: session.NewTimerScheduler(),
		Logger:    slog.Default(),
		Provision: func(ctx context.Context, au model.AuthUser) error {
			_, _, err := users.EnsureProfile(ctx, au)
			return err
		},
		OnAuthenticated: func(ctx context.Context, au model.AuthUser) {
			collector.RecordAuthAttempt(string(au.AuthProvider), "success")
		},
		OnFailed: func(ctx context.Context, provider model.AuthProvider) {
			collector.RecordAuthAttempt(string(provider), "failure")
		},
	}
	if !cfg.AuthSimulateLatency {
		opts.Scheduler = session.ImmediateScheduler{}
	}
	return opts
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. ストレージ
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()
	mediaChecker := security.NewMediaURLChecker(ssrfGuard, cfg.MediaCheckTimeout, cfg.VerifyMediaURLs, slog.Default())

	// 4. ドメインサービスの初期化
	backendClient := backend.NewStubClient(slog.Default())
	catalogService := catalog.NewService(
		store.events, store.activities, store.users, backendClient,
		sanitizer, mediaChecker, collector, slog.Default(),
		catalog.Options{EnforceCapacity: cfg.CatalogEnforceCapacity},
	)
	userService := user.NewService(
		store.users, store.activities, store.prefs, backendClient,
		sanitizer, mediaChecker, nil,
	)

	if cfg.CatalogSeed {
		if _, err := catalogService.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	if _, err := catalogService.Sync(ctx); err != nil {
		slog.Warn("initial catalog sync failed", slog.String("error", err.Error()))
	}

	// 5. 認証状態の管理
	manager := session.NewManager(store.prefs, newSessionOptions(cfg, userService, collector), cfg.SessionIdleTTL)
	sessions := handler.NewSessionManagerAdapter(manager)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitJoin))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		HealthChecker:  store.healthChecker(),

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		ClientConfig: middleware.ClientConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
			MaxAge:       cfg.ClientCookieMaxAge,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		Sessions:     sessions,
		AuthResolver: sessions,

		EventService:    catalogService,
		ActivityService: catalogService,
		ProfileService:  userService,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		manager.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 終了済みイベントのクリーンアップとバックエンドからのカタログ同期を定期実行する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. ストレージ
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.db == nil {
		slog.Warn("worker is running against in-memory storage; changes are not shared with the API server")
	}

	// 2. メトリクス（ワーカーは公開しないが、収集インターフェースを満たすために登録する）
	collector := metrics.NewCollector(prometheus.NewRegistry())

	// 3. ジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(store.events, collector, slog.Default())
	cleanupJob.RetentionDays = cfg.EventRetentionDays

	backendClient := backend.NewStubClient(slog.Default())
	mediaChecker := security.NewMediaURLChecker(security.NewSSRFGuard(), cfg.MediaCheckTimeout, cfg.VerifyMediaURLs, slog.Default())
	catalogService := catalog.NewService(
		store.events, store.activities, store.users, backendClient,
		security.NewTextSanitizer(), mediaChecker, collector, slog.Default(),
		catalog.Options{EnforceCapacity: cfg.CatalogEnforceCapacity},
	)
	syncScheduler := syncer.NewScheduler(catalogService, slog.Default(), cfg.SyncInterval)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", cfg.EventRetentionDays),
		slog.Duration("sync_interval", cfg.SyncInterval),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleanupJob.Start(gctx, cfg.CleanupInterval)
		return nil
	})

	g.Go(func() error {
		syncScheduler.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.UsesDatabase() {
		return errors.New("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
