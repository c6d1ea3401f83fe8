package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	Port    string
	AppName string

	// DatabaseURL is optional; without it generation history is not persisted.
	DatabaseURL string

	DiscordBotToken   string
	DiscordAPIBase    string
	DiscordCDNBase    string
	DiscordWebhookURL string

	AssetBaseURL string
	AssetDir     string
	CatalogPath  string

	HandoffDir         string
	HandoffTTL         time.Duration
	ArtifactInlineMax  int64
	MaxSourceBytes     int64
	MaxSourcePixels    int
	MaxAnimationPixels int
	AvatarMaxSide      int
	OutputSize         int
	EngineTimeout      time.Duration
	SessionIdleTTL     time.Duration
	HistoryRetention   time.Duration
	GeoIPDBPath        string
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		AppName:            getEnv("APP_NAME", "Discord Custom Avatars"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DiscordBotToken:    os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordAPIBase:     getEnv("DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordCDNBase:     getEnv("DISCORD_CDN_BASE", "https://cdn.discordapp.com"),
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
		AssetBaseURL:       os.Getenv("ASSET_BASE_URL"),
		AssetDir:           getEnv("ASSET_DIR", "./assets"),
		CatalogPath:        os.Getenv("CATALOG_PATH"),
		HandoffDir:         getEnv("HANDOFF_DIR", "./storage"),
		HandoffTTL:         getEnvDuration("HANDOFF_TTL_MINUTES", time.Minute, 30),
		ArtifactInlineMax:  int64(getEnvInt("ARTIFACT_INLINE_LIMIT_BYTES", 8<<20)),
		MaxSourceBytes:     int64(getEnvInt("MAX_SOURCE_BYTES", 10<<20)),
		MaxSourcePixels:    getEnvInt("MAX_SOURCE_PIXELS", 4096*4096),
		MaxAnimationPixels: getEnvInt("MAX_ANIMATION_PIXELS", 64<<20),
		AvatarMaxSide:      getEnvInt("AVATAR_MAX_SIDE", 512),
		OutputSize:         getEnvInt("OUTPUT_SIZE", 288),
		EngineTimeout:      getEnvDuration("ENGINE_TIMEOUT_SECONDS", time.Second, 60),
		SessionIdleTTL:     getEnvDuration("SESSION_IDLE_TTL_MINUTES", time.Minute, 60),
		HistoryRetention:   getEnvDuration("HISTORY_RETENTION_DAYS", 24*time.Hour, 30),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		HTTPReadTimeout:    getEnvDuration("HTTP_READ_TIMEOUT_SECONDS", time.Second, 15),
		HTTPWriteTimeout:   getEnvDuration("HTTP_WRITE_TIMEOUT_SECONDS", time.Second, 60),
		HTTPIdleTimeout:    getEnvDuration("HTTP_IDLE_TIMEOUT_SECONDS", time.Second, 60),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.ArtifactInlineMax < 0 {
		return nil, fmt.Errorf("ARTIFACT_INLINE_LIMIT_BYTES must not be negative")
	}
	if cfg.MaxSourceBytes <= 0 {
		return nil, fmt.Errorf("MAX_SOURCE_BYTES must be positive")
	}
	if cfg.MaxSourcePixels <= 0 || cfg.MaxAnimationPixels < cfg.MaxSourcePixels {
		return nil, fmt.Errorf("MAX_SOURCE_PIXELS must be positive and not above MAX_ANIMATION_PIXELS")
	}
	if cfg.OutputSize < 16 || cfg.OutputSize > 2048 {
		return nil, fmt.Errorf("OUTPUT_SIZE must be between 16 and 2048, got %d", cfg.OutputSize)
	}
	if cfg.AvatarMaxSide < cfg.OutputSize {
		return nil, fmt.Errorf("AVATAR_MAX_SIDE (%d) must not be smaller than OUTPUT_SIZE (%d)", cfg.AvatarMaxSide, cfg.OutputSize)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, unit time.Duration, fallback int) time.Duration {
	return unit * time.Duration(getEnvInt(key, fallback))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
