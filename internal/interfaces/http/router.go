package http

import (
	"net/http"

	"github.com/dreschagin/ci-buildbot/internal/interfaces/http/handler"
	"github.com/dreschagin/ci-buildbot/internal/interfaces/http/middleware"
	"github.com/dreschagin/ci-buildbot/pkg/config"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Router настраивает маршруты приложения
type Router struct {
	mux               *http.ServeMux
	statusHandler     *handler.BuildStatusHandler
	queuedHandler     *handler.BuildQueuedHandler
	websocketHandler  *handler.WebSocketHandler
	metricsHandler    http.Handler
	metricsMiddleware func(http.Handler) http.Handler
	onAuthFailure     func()
	onRateLimited     func()
	security          config.SecurityConfig
	rateLimit         config.RateLimitConfig
	logger            *logger.Logger
}

// RouterConfig — зависимости роутера. websocketHandler и metrics-поля
// опциональны (nil выключает соответствующий маршрут)
type RouterConfig struct {
	StatusHandler     *handler.BuildStatusHandler
	QueuedHandler     *handler.BuildQueuedHandler
	WebSocketHandler  *handler.WebSocketHandler
	MetricsHandler    http.Handler
	MetricsMiddleware func(http.Handler) http.Handler
	OnAuthFailure     func()
	OnRateLimited     func()
	Security          config.SecurityConfig
	RateLimit         config.RateLimitConfig
	Logger            *logger.Logger
}

// NewRouter создает новый router
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		statusHandler:     cfg.StatusHandler,
		queuedHandler:     cfg.QueuedHandler,
		websocketHandler:  cfg.WebSocketHandler,
		metricsHandler:    cfg.MetricsHandler,
		metricsMiddleware: cfg.MetricsMiddleware,
		onAuthFailure:     cfg.OnAuthFailure,
		onRateLimited:     cfg.OnRateLimited,
		security:          cfg.Security,
		rateLimit:         cfg.RateLimit,
		logger:            cfg.Logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints are intentionally unauthenticated for probes.
	rt.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Webhook endpoints: подпись проверяется только на /status, rate limit
	// общий для обоих
	hmacMiddleware := middleware.HMAC(middleware.HMACConfig{
		Secret:    rt.security.StatusHMACSecret,
		OnFailure: rt.onAuthFailure,
	}, rt.logger)

	statusRoute := hmacMiddleware(http.HandlerFunc(rt.statusHandler.HandleStatus))
	queuedRoute := http.Handler(http.HandlerFunc(rt.queuedHandler.HandleQueued))

	if rt.rateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(rt.rateLimit.RPS, rt.rateLimit.Burst)
		rateLimitMiddleware := middleware.RateLimit(limiter, rt.onRateLimited)
		statusRoute = rateLimitMiddleware(statusRoute)
		queuedRoute = rateLimitMiddleware(queuedRoute)
	}

	rt.mux.Handle("/status", statusRoute)
	rt.mux.Handle("/buildQueued", queuedRoute)

	// Prometheus
	if rt.metricsHandler != nil {
		rt.mux.Handle("/metrics", rt.metricsHandler)
	}

	// WebSocket live-фид панели
	if rt.websocketHandler != nil {
		rt.mux.Handle("/ws", http.HandlerFunc(rt.websocketHandler.HandleConnection))
	}

	// Применяем middleware
	var root http.Handler = rt.mux
	if rt.metricsMiddleware != nil {
		root = rt.metricsMiddleware(root)
	}
	root = middleware.Logger(rt.logger)(root)
	root = middleware.Recovery(rt.logger)(root)

	return root
}
