package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	CI        CIConfig
	Review    ReviewConfig
	Chat      ChatConfig
	LegacyCI  LegacyCIConfig
	Health    HealthConfig
	Panel     PanelConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	NATS      NATSConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CIConfig описывает подключение к CI серверу (TeamCity).
type CIConfig struct {
	BaseURL             string
	Token               string
	Project             string
	LandBuildTypeID     string
	CoverageBuildTypeID string
	IgnoreKeyword       string
	RequestTimeout      time.Duration
}

// ReviewConfig описывает подключение к review/task трекеру (Phabricator Conduit).
type ReviewConfig struct {
	BaseURL           string
	APIToken          string
	CommitPrefix      string
	ChatHandleField   string
	ConfigFilePath    string
	StatusPanelID     int
	CoveragePanelID   int
	CoveragePermalink string
	RequestTimeout    time.Duration
}

type ChatConfig struct {
	BaseURL        string
	Token          string
	DevChannel     string
	InfraChannel   string
	InfraMention   string
	RequestTimeout time.Duration
}

// LegacyCIConfig описывает legacy CI (Travis), статус которого рендерится
// первым блоком на status panel.
type LegacyCIConfig struct {
	BaseURL        string
	RepoSlug       string
	Branch         string
	ProjectLabel   string
	BuildURL       string
	RequestTimeout time.Duration
}

type HealthConfig struct {
	// Окно для детектирования flaky сборок (spec: 5 суток)
	FlakyWindow time.Duration

	// Символические ссылки, которые считаются primary integration branch
	PrimaryBranches []string
}

type PanelConfig struct {
	BadgeBaseURL string
	CILogoURL    string
}

type SecurityConfig struct {
	// HMAC секрет для верификации /status webhook. Пустое значение
	// отключает проверку (удобно для локального запуска и тестов).
	StatusHMACSecret string
	AllowedOrigins   []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type NATSConfig struct {
	Enabled bool
	URL     string
}

type WebSocketConfig struct {
	Enabled bool
}

// Load загружает конфигурацию из environment (и .env файла если он есть)
func Load() (*Config, error) {
	// .env опционален: в production все приходит из environment
	_ = godotenv.Load()

	ciTimeout, err := parseDuration(getEnv("CI_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CI_REQUEST_TIMEOUT: %w", err)
	}

	reviewTimeout, err := parseDuration(getEnv("REVIEW_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_REQUEST_TIMEOUT: %w", err)
	}

	flakyWindow, err := parseDuration(getEnv("HEALTH_FLAKY_WINDOW", "120h"))
	if err != nil {
		return nil, fmt.Errorf("invalid HEALTH_FLAKY_WINDOW: %w", err)
	}

	statusPanelID, err := strconv.Atoi(getEnv("REVIEW_STATUS_PANEL_ID", "17"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_STATUS_PANEL_ID: %w", err)
	}

	coveragePanelID, err := strconv.Atoi(getEnv("REVIEW_COVERAGE_PANEL_ID", "21"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_COVERAGE_PANEL_ID: %w", err)
	}

	rateLimitRPS, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	rateLimitBurst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		CI: CIConfig{
			BaseURL:             getEnv("CI_BASE_URL", "https://build.example.org"),
			Token:               getEnv("CI_TOKEN", ""),
			Project:             getEnv("CI_PROJECT", "BitcoinABC"),
			LandBuildTypeID:     getEnv("CI_LAND_BUILD_TYPE", "BitcoinAbcLandBot"),
			CoverageBuildTypeID: getEnv("CI_COVERAGE_BUILD_TYPE", ""),
			IgnoreKeyword:       getEnv("CI_IGNORE_KEYWORD", "__BOTIGNORE"),
			RequestTimeout:      ciTimeout,
		},
		Review: ReviewConfig{
			BaseURL:           getEnv("REVIEW_BASE_URL", "https://reviews.example.org"),
			APIToken:          getEnv("REVIEW_API_TOKEN", ""),
			CommitPrefix:      getEnv("REVIEW_COMMIT_PREFIX", "rABC"),
			ChatHandleField:   getEnv("REVIEW_CHAT_HANDLE_FIELD", "custom.abc:slack-username"),
			ConfigFilePath:    getEnv("REVIEW_BUILD_CONFIG_PATH", "contrib/teamcity/build-configurations.yml"),
			StatusPanelID:     statusPanelID,
			CoveragePanelID:   coveragePanelID,
			CoveragePermalink: getEnv("REVIEW_COVERAGE_PERMALINK", ""),
			RequestTimeout:    reviewTimeout,
		},
		Chat: ChatConfig{
			BaseURL:        getEnv("CHAT_BASE_URL", "https://slack.com/api"),
			Token:          getEnv("CHAT_TOKEN", ""),
			DevChannel:     getEnv("CHAT_DEV_CHANNEL", "dev"),
			InfraChannel:   getEnv("CHAT_INFRA_CHANNEL", "infra"),
			InfraMention:   getEnv("CHAT_INFRA_MENTION", ""),
			RequestTimeout: 15 * time.Second,
		},
		LegacyCI: LegacyCIConfig{
			BaseURL:        getEnv("LEGACY_CI_BASE_URL", "https://api.travis-ci.org"),
			RepoSlug:       getEnv("LEGACY_CI_REPO_SLUG", "bitcoin-abc/bitcoin-abc"),
			Branch:         getEnv("LEGACY_CI_BRANCH", "master"),
			ProjectLabel:   getEnv("LEGACY_CI_PROJECT_LABEL", ""),
			BuildURL:       getEnv("LEGACY_CI_BUILD_URL", ""),
			RequestTimeout: 15 * time.Second,
		},
		Health: HealthConfig{
			FlakyWindow:     flakyWindow,
			PrimaryBranches: splitCSV(getEnv("HEALTH_PRIMARY_BRANCHES", "refs/heads/master,<default>")),
		},
		Panel: PanelConfig{
			BadgeBaseURL: getEnv("PANEL_BADGE_BASE_URL", "https://raster.shields.io/static/v1"),
			CILogoURL:    getEnv("PANEL_CI_LOGO_URL", ""),
		},
		Security: SecurityConfig{
			StatusHMACSecret: getEnv("HMAC_STATUS_SECRET", ""),
			AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			RPS:     rateLimitRPS,
			Burst:   rateLimitBurst,
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
		},
		WebSocket: WebSocketConfig{
			Enabled: getEnvBool("WS_ENABLED", false),
		},
	}

	if cfg.CI.BaseURL == "" {
		return nil, fmt.Errorf("CI_BASE_URL must not be empty")
	}
	if cfg.Review.BaseURL == "" {
		return nil, fmt.Errorf("REVIEW_BASE_URL must not be empty")
	}
	if len(cfg.Health.PrimaryBranches) == 0 {
		return nil, fmt.Errorf("HEALTH_PRIMARY_BRANCHES must name at least one ref")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	current := ""

	for _, r := range raw {
		if r == ',' {
			if current != "" {
				items = append(items, current)
				current = ""
			}
			continue
		}
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			current += string(r)
		}
	}

	if current != "" {
		items = append(items, current)
	}

	return items
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
