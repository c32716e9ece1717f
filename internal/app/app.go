package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/dealsight/dealsight/internal/alert"
	"github.com/dealsight/dealsight/internal/auth"
	"github.com/dealsight/dealsight/internal/cache"
	"github.com/dealsight/dealsight/internal/config"
	"github.com/dealsight/dealsight/internal/database"
	"github.com/dealsight/dealsight/internal/handler"
	"github.com/dealsight/dealsight/internal/listing"
	"github.com/dealsight/dealsight/internal/logger"
	"github.com/dealsight/dealsight/internal/metrics"
	"github.com/dealsight/dealsight/internal/middleware"
	"github.com/dealsight/dealsight/internal/repository"
	"github.com/dealsight/dealsight/internal/security"
	"github.com/dealsight/dealsight/internal/track"
	"github.com/dealsight/dealsight/internal/webhook"
	alertworker "github.com/dealsight/dealsight/internal/worker/alert"
	"github.com/dealsight/dealsight/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)
	savedRepo := repository.NewPostgresSavedListingRepo(db)
	hiddenRepo := repository.NewPostgresHiddenListingRepo(db)
	overrideRepo := repository.NewPostgresOverrideRepo(db)
	trackerRepo := repository.NewPostgresTrackerRepo(db)
	prefsRepo := repository.NewPostgresPreferencesRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. スナップショットキャッシュの初期化
	// Redis未設定・接続不可でもキャッシュなしで起動を継続する
	var snapshotCache listing.SnapshotCache
	if cfg.CacheEnabled() {
		c, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL, slog.Default())
		if err != nil {
			slog.Warn("Redisに接続できないためキャッシュなしで起動します",
				slog.String("error", err.Error()),
			)
		} else {
			defer c.Close()
			snapshotCache = c
		}
	}

	// 5. ドメインサービスの初期化
	sanitizer := security.NewDescriptionSanitizer()
	normalizer := listing.NewNormalizer(sanitizer)

	listingService := listing.NewService(
		listingRepo, savedRepo, hiddenRepo, overrideRepo,
		normalizer, snapshotCache, collector, slog.Default(), cfg.FetchTimeout,
	)
	trackService := track.NewService(
		savedRepo, hiddenRepo, overrideRepo, trackerRepo,
		collector, slog.Default(),
	)

	webhookService, err := webhook.NewService(
		cfg.ClerkWebhookSecret, userRepo, prefsRepo,
		trackService, collector, slog.Default(),
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook service: %w", err)
	}

	verifier := auth.NewClerkVerifier(cfg.ClerkSecretKey)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rateLimitPerSecond(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.RefreshRate = rateLimitPerSecond(cfg.RateLimitRefresh)
	rateLimiterCfg.RefreshBurst = cfg.RateLimitRefresh
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     verifier,
		UserRepo:          userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		ListingService: listingService,
		TrackService:   trackService,

		PreferencesStore: prefsRepo,
		AlertStore:       alertRepo,

		WebhookProcessor: webhookService,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、アラートダイジェストのスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	listingRepo := repository.NewPostgresListingRepo(db)
	prefsRepo := repository.NewPostgresPreferencesRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)

	// 3. ダイジェスト生成パイプラインの初期化
	sanitizer := security.NewDescriptionSanitizer()
	normalizer := listing.NewNormalizer(sanitizer)

	renderer, err := alert.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to create digest renderer: %w", err)
	}

	sender := alert.NewEmailSender(alert.EmailConfig{
		SMTPServer: cfg.SMTPServer,
		SMTPPort:   cfg.SMTPPort,
		SMTPUser:   cfg.SMTPUser,
		SMTPPass:   cfg.SMTPPass,
		FromEmail:  cfg.FromEmail,
		Enabled:    cfg.EmailEnabled(),
	}, slog.Default())

	// マーケットサマリーは任意機能。APIキー未設定の場合は無効
	var insights alertworker.InsightsGenerator
	generator := alert.NewInsightsGenerator(cfg.GeminiAPIKey, cfg.GeminiModel, slog.Default())
	if generator.Enabled() {
		insights = generator
	}

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. スケジューラの起動
	scheduler := alertworker.NewScheduler(
		prefsRepo, alertRepo, listingRepo,
		normalizer, renderer, sender,
		insights, collector, slog.Default(), cfg.AlertMaxConcurrent,
	)

	// 6. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("alert_interval", cfg.AlertInterval),
		slog.Int("max_concurrent", cfg.AlertMaxConcurrent),
		slog.Bool("email_enabled", cfg.EmailEnabled()),
		slog.Bool("insights_enabled", generator.Enabled()),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// アラートスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.AlertInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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

// rateLimitPerSecond はreq/minの設定値をreq/secのレートに変換する。
func rateLimitPerSecond(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
