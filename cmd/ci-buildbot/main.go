package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Application
	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/application/usecase"

	// Domain
	"github.com/dreschagin/ci-buildbot/internal/domain/service"

	// Infrastructure
	"github.com/dreschagin/ci-buildbot/internal/infrastructure/chat/slack"
	"github.com/dreschagin/ci-buildbot/internal/infrastructure/ci/teamcity"
	"github.com/dreschagin/ci-buildbot/internal/infrastructure/legacyci/travis"
	natsInfra "github.com/dreschagin/ci-buildbot/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/ci-buildbot/internal/infrastructure/notification/websocket"
	promInfra "github.com/dreschagin/ci-buildbot/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/ci-buildbot/internal/infrastructure/review/phabricator"

	// Interfaces
	httpInterface "github.com/dreschagin/ci-buildbot/internal/interfaces/http"
	"github.com/dreschagin/ci-buildbot/internal/interfaces/http/handler"

	// Shared
	"github.com/dreschagin/ci-buildbot/pkg/config"
	"github.com/dreschagin/ci-buildbot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.New(os.Getenv("LOG_LEVEL"))
	log.Info("Starting CI buildbot")

	// 3. Dependency Injection - Infrastructure Layer

	// Внешние сервисы
	ciClient := teamcity.NewClient(cfg.CI.BaseURL, cfg.CI.Token, cfg.CI.Project, cfg.CI.RequestTimeout, log)
	reviewClient := phabricator.NewClient(phabricator.ClientConfig{
		BaseURL:         cfg.Review.BaseURL,
		APIToken:        cfg.Review.APIToken,
		CommitPrefix:    cfg.Review.CommitPrefix,
		ChatHandleField: cfg.Review.ChatHandleField,
		Timeout:         cfg.Review.RequestTimeout,
	}, log)
	chatClient := slack.NewClient(cfg.Chat.BaseURL, cfg.Chat.Token, cfg.Chat.RequestTimeout, log)
	legacyClient := travis.NewClient(cfg.LegacyCI.BaseURL, cfg.LegacyCI.RequestTimeout, log)

	// Prometheus
	registry := prometheus.NewRegistry()
	metrics := promInfra.New(registry)

	// WebSocket hub (опционально)
	var hub *wsInfra.Hub
	var notifier port.PanelNotifier
	if cfg.WebSocket.Enabled {
		hub = wsInfra.NewHub(log)
		notifier = hub
	}

	// NATS publisher (опционально)
	var publisher port.EventPublisher
	var natsPublisher *natsInfra.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = natsInfra.NewNATSPublisher(cfg.NATS.URL, log)
		if err != nil {
			log.Error("Failed to connect to NATS", err)
			os.Exit(1)
		}
		publisher = natsPublisher
	}

	// 4. Dependency Injection - Domain Layer

	classifier := service.NewEventClassifier(cfg.CI.IgnoreKeyword, cfg.CI.LandBuildTypeID, cfg.Health.PrimaryBranches)
	snippetExtractor := service.NewLogSnippetExtractor()
	coverageParser := service.NewCoverageReportParser()
	panelRenderer := service.NewPanelRenderer(cfg.Panel.BadgeBaseURL, "Teamcity build", cfg.Panel.CILogoURL)
	legacyRenderer := service.NewPanelRenderer(cfg.Panel.BadgeBaseURL, "Travis build", "travis")

	// 5. Dependency Injection - Application Layer (Use Cases)

	authors := usecase.NewAuthorResolver(reviewClient, chatClient, log)

	healthUC := usecase.NewReconcileBranchHealthUseCase(
		ciClient,
		reviewClient,
		chatClient,
		authors,
		cfg.Chat.DevChannel,
		cfg.Health.FlakyWindow,
		log,
	)

	locatorUC := usecase.NewLocateFailureUseCase(ciClient, snippetExtractor, log)
	commentUC := usecase.NewCommentReviewFailureUseCase(ciClient, reviewClient, locatorUC, log)
	landUC := usecase.NewNotifyLandResultUseCase(ciClient, reviewClient, chatClient, authors, cfg.Chat.DevChannel, log)
	linkUC := usecase.NewSyncBuildLinkUseCase(ciClient, reviewClient, log)

	panelUC := usecase.NewRefreshStatusPanelUseCase(
		ciClient,
		reviewClient,
		legacyClient,
		panelRenderer,
		legacyRenderer,
		usecase.RefreshStatusPanelParams{
			ConfigFilePath: cfg.Review.ConfigFilePath,
			PanelID:        cfg.Review.StatusPanelID,
			PrimaryBranch:  cfg.Health.PrimaryBranches[0],
			FallbackGroup:  "Unassociated",
			LegacyRepo:     cfg.LegacyCI.RepoSlug,
			LegacyBranch:   cfg.LegacyCI.Branch,
			LegacyLabel:    cfg.LegacyCI.ProjectLabel,
			LegacyBuildURL: cfg.LegacyCI.BuildURL,
		},
		log,
	)

	coverageUC := usecase.NewUpdateCoveragePanelUseCase(
		ciClient,
		reviewClient,
		coverageParser,
		cfg.Review.CoveragePanelID,
		cfg.Review.CoveragePermalink,
		log,
	)

	infraUC := usecase.NewNotifyInfraFailureUseCase(
		ciClient,
		reviewClient,
		chatClient,
		cfg.Chat.InfraChannel,
		cfg.Chat.InfraMention,
		log,
	)

	completionUC := usecase.NewHandleBuildCompletionUseCase(
		classifier,
		healthUC,
		commentUC,
		landUC,
		linkUC,
		panelUC,
		coverageUC,
		infraUC,
		publisher,
		notifier,
		metrics,
		cfg.CI.CoverageBuildTypeID,
		log,
	)

	// 6. Dependency Injection - Interfaces Layer (HTTP Handlers)

	statusHandler := handler.NewBuildStatusHandler(completionUC, log)
	queuedHandler := handler.NewBuildQueuedHandler(linkUC, log)

	var websocketHandler *handler.WebSocketHandler
	if hub != nil {
		websocketHandler = handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, log)
	}

	// Router
	router := httpInterface.NewRouter(httpInterface.RouterConfig{
		StatusHandler:     statusHandler,
		QueuedHandler:     queuedHandler,
		WebSocketHandler:  websocketHandler,
		MetricsHandler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MetricsMiddleware: metrics.Middleware,
		OnAuthFailure:     metrics.AuthFailures.Inc,
		OnRateLimited:     metrics.RateLimitDropped.Inc,
		Security:          cfg.Security,
		RateLimit:         cfg.RateLimit,
		Logger:            log,
	})

	// 7. Запускаем фоновые процессы

	if hub != nil {
		go hub.Run()
		log.Info("WebSocket hub started")
	}

	// 8. Настраиваем HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Канал для получения сигналов ОС
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Запускаем сервер в отдельной goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 9. Ожидаем сигнал для graceful shutdown

	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	if natsPublisher != nil {
		if err := natsPublisher.Close(); err != nil {
			log.Error("NATS close error", err)
		}
	}

	log.Info("Server stopped gracefully")
}
