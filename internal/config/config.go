package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string
	DataDir  string

	// Greeting generation endpoint. An empty LLMAPIURL means no endpoint
	// is configured; NPC selection then degrades to static approach lines.
	LLMAPIURL string
	LLMAPIKey string
	LLMModel  string

	WorldName string

	MessagesPerDay      int
	EnableDayNightCycle bool
	DailyAffinityCap    int
	SentimentCooldown   int
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),
		DataDir:  getEnv("DATA_DIR", "./data"),

		LLMAPIURL: getEnv("LLM_API_URL", ""),
		LLMAPIKey: getEnv("LLM_API_KEY", ""),
		LLMModel:  getEnv("LLM_MODEL", "llama-3.3-70b"),

		WorldName: getEnv("WORLD_NAME", "Hollowvale"),

		MessagesPerDay:      getEnvInt("MESSAGES_PER_DAY", 50),
		EnableDayNightCycle: getEnvBool("ENABLE_DAY_NIGHT_CYCLE", true),
		DailyAffinityCap:    getEnvInt("DAILY_AFFINITY_CAP", 60),
		SentimentCooldown:   getEnvInt("SENTIMENT_COOLDOWN", 3),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
