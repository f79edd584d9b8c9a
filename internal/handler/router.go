package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/moodlens/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	StatusMetrics     middleware.StatusMetrics

	// 認証不要のエンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメインサービス
	CheckinService   CheckinServiceInterface
	InsightService   InsightServiceInterface
	UserService      UserServiceInterface
	DefaultRangeDays int
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → Session → CSRF → RateLimit(General)
//
// /health、/metrics、/api/csrf-token はセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	checkinHandler := NewCheckinHandler(deps.CheckinService, deps.DefaultRangeDays)
	insightHandler := NewInsightHandler(deps.InsightService, deps.DefaultRangeDays)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/moods", func(r chi.Router) {
			r.Get("/", checkinHandler.ListMoods)
			r.Post("/", checkinHandler.RecordMood)
		})

		r.Route("/api/journal", func(r chi.Router) {
			r.Get("/", checkinHandler.ListJournal)
			r.Post("/", checkinHandler.RecordJournal)
			r.Get("/{id}", checkinHandler.GetJournal)
		})

		r.Route("/api/insights", func(r chi.Router) {
			r.Get("/", insightHandler.GetInsights)
			// 再生成は専用のレート制限を追加
			r.With(deps.RateLimiter.RegenerateMiddleware()).Post("/regenerate", insightHandler.Regenerate)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
