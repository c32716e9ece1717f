package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealsight/dealsight/internal/auth"
	"github.com/dealsight/dealsight/internal/middleware"
	"github.com/dealsight/dealsight/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     auth.TokenVerifier
	UserRepo          repository.UserRepository
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 案件
	ListingService ListingServiceInterface

	// ユーザー操作
	TrackService TrackServiceInterface

	// アラート設定・条件
	PreferencesStore PreferencesStore
	AlertStore       AlertStore

	// Webhook
	WebhookProcessor WebhookProcessor

	// メトリクス公開エンドポイント。nilの場合は公開しない
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS →
//	IdentityMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// Webhook受信・ヘルスチェック・メトリクスは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア（panic回復を最外殻に置く）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	listingHandler := NewListingHandler(deps.ListingService)
	trackHandler := NewTrackHandler(deps.TrackService)
	prefsHandler := NewPreferencesHandler(deps.PreferencesStore)
	alertHandler := NewAlertHandler(deps.AlertStore)
	webhookHandler := NewWebhookHandler(deps.WebhookProcessor)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// IdPからのユーザー同期Webhook（署名検証で保護される）
	r.Post("/webhooks/clerk", webhookHandler.HandleClerkWebhook)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.TokenVerifier, deps.UserRepo))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 案件一覧・詳細
		r.Route("/api/listings", func(r chi.Router) {
			r.Get("/", listingHandler.ListListings)

			// POST /api/listings/refresh - スナップショット再取得（専用レート制限を追加）
			r.With(deps.RateLimiter.RefreshMiddleware()).Post("/refresh", listingHandler.RefreshListings)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.GetListing)

				// ユーザー操作
				r.Put("/save", trackHandler.ToggleSave)
				r.Put("/hide", trackHandler.ToggleHide)
				r.Put("/override", trackHandler.SetOverride)
				r.Put("/tracker", trackHandler.SetTrackerField)
			})
		})

		// ディールトラッカー一覧
		r.Get("/api/trackers", trackHandler.ListTrackers)

		// アラート設定
		r.Route("/api/preferences", func(r chi.Router) {
			r.Get("/", prefsHandler.GetPreferences)
			r.Put("/", prefsHandler.UpdatePreferences)
		})

		// アラート条件
		r.Route("/api/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.ListAlerts)
			r.Post("/", alertHandler.CreateAlert)
			r.Delete("/{id}", alertHandler.DeleteAlert)
		})
	})

	return r
}
