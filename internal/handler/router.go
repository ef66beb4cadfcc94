package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/autoblog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker
	RateLimiter   *middleware.RateLimiter
	// MetricsHandler はnilの場合/metricsを公開しない
	MetricsHandler http.Handler
	DefaultSiteID  int64

	FeedService      FeedServiceInterface
	MediaService     MediaServiceInterface
	DashboardService DashboardServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	healthHandler := NewHealthHandler(deps.HealthChecker, deps.Logger)
	feedHandler := NewFeedHandler(deps.FeedService, deps.DefaultSiteID, deps.Logger)
	mediaHandler := NewMediaHandler(deps.MediaService, deps.Logger)
	dashboardHandler := NewDashboardHandler(deps.DashboardService, deps.DefaultSiteID, deps.Logger)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/dashboard", dashboardHandler.RenderDashboard)
		r.Get("/media/{guid}", mediaHandler.ServeMedia)

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", dashboardHandler.GetDashboard)

			r.Route("/feeds", func(r chi.Router) {
				r.Get("/", feedHandler.ListFeeds)
				// フィード検出で外部URLを取得するため専用のレート制限を追加
				r.With(deps.RateLimiter.ImportMiddleware()).Post("/", feedHandler.CreateFeed)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", feedHandler.GetFeed)
					r.Get("/featured-image", feedHandler.GetFeaturedImage)
					r.Put("/featured-image", feedHandler.UpdateFeaturedImage)
				})
			})

			r.Route("/media", func(r chi.Router) {
				r.With(deps.RateLimiter.ImportMiddleware()).Post("/", mediaHandler.ImportMedia)
				r.Get("/{id}", mediaHandler.GetMedia)
			})
		})
	})

	return r
}
