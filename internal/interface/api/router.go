// Package api は推薦とカタログ操作をHTTPで公開する
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RequestObserver はHTTPリクエストの結果を記録する
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, latency time.Duration)
}

// HealthChecker は /healthz で返す状態
type HealthChecker func() map[string]string

// RouterConfig はルーターの設定
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration

	Observer       RequestObserver
	MetricsHandler http.Handler
	Health         HealthChecker
	Logger         *slog.Logger
}

// NewRouter はルーティングとミドルウェアを組み立てる
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger, cfg.Observer))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]string{"status": "ok"}
		if cfg.Health != nil {
			for k, v := range cfg.Health() {
				status[k] = v
			}
		}
		respondJSON(w, http.StatusOK, status)
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/recommendation", h.Recommend)

		r.Post("/users", h.RegisterUser)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Put("/interests", h.UpdateUserInterests)
			r.Get("/reviews", h.ListUserReviews)
			r.Post("/search_logs", h.CreateSearchLog)
			r.Get("/search_logs", h.ListSearchLogs)
		})

		r.Post("/restaurants", h.CreateRestaurant)
		r.Get("/restaurants/search", h.SearchRestaurants)
		r.Get("/restaurants/recommendations/{userID}", h.RecommendForUser)
		r.Route("/restaurants/{id}", func(r chi.Router) {
			r.Get("/", h.GetRestaurant)
			r.Put("/summary", h.UpdateRestaurantSummary)
			r.Get("/reviews", h.ListRestaurantReviews)
		})

		r.Post("/reviews", h.CreateReview)
	})

	return r
}

// requestLogger はアクセスログとリクエストメトリクスを記録する
func requestLogger(logger *slog.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			latency := time.Since(start)

			if observer != nil {
				observer.ObserveHTTPRequest(r.Method, route, status, latency)
			}
			logger.Info("http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration", latency,
				"requestID", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
