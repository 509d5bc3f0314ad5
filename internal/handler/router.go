// Package handler はパイプラインのHTTPトリガーAPIを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/newsroom/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// トリガー
	Ingester   IngestRunner
	Backfiller BackfillRunner
	Discoverer SourceDiscoverer

	// ストア
	Sources  SourceStore
	Articles ArticleLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS → RateLimit(General)
//
// 取り込み・画像補完・フィード探索にはトリガー用のレート制限を追加で適用する。
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rl := deps.RateLimiter
	if rl == nil {
		rl = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	triggerHandler := NewTriggerHandler(deps.Ingester, deps.Backfiller, deps.Discoverer, logger)
	sourceHandler := NewSourceHandler(deps.Sources, logger)
	articleHandler := NewArticleHandler(deps.Articles, logger)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- API ---
	r.Group(func(r chi.Router) {
		r.Use(rl.GeneralMiddleware())

		// トリガー（専用レート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(rl.TriggerMiddleware())
			r.Post("/api/ingest", triggerHandler.Ingest)
			r.Post("/api/backfill", triggerHandler.Backfill)
		})

		// ソース管理
		r.Route("/api/sources", func(r chi.Router) {
			r.Get("/", sourceHandler.List)
			r.Post("/", sourceHandler.Create)
			r.Patch("/{id}/active", sourceHandler.SetActive)

			// POST /api/sources/discover - フィード探索（トリガー用レート制限を追加）
			r.With(rl.TriggerMiddleware()).Post("/discover", triggerHandler.Discover)
		})

		// 記事
		r.Get("/api/articles", articleHandler.List)
	})

	return r
}
