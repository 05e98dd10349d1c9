package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	DBPath         string
	CORSOrigins    []string
	MigrationsDir  string
	SettingsPath   string
	AppURL         string
	ActionSecret   string
	ActionTokenTTL time.Duration
	ForegroundTick time.Duration
	BackgroundTick time.Duration
	SyncInterval   time.Duration
	SaveDebounce   time.Duration
}

func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/focustimer.db"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", ""),
		SettingsPath:   getEnv("SETTINGS_PATH", "./data/settings.yaml"),
		AppURL:         getEnv("APP_URL", "http://localhost:5173"),
		ActionSecret:   getEnv("ACTION_TOKEN_SECRET", "change-this-secret"),
		ActionTokenTTL: time.Duration(getEnvInt("ACTION_TOKEN_TTL_HOURS", 24)) * time.Hour,
		ForegroundTick: getEnvDuration("FOREGROUND_TICK_MS", time.Millisecond, 100),
		BackgroundTick: getEnvDuration("BACKGROUND_TICK_MS", time.Millisecond, 1000),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL_SECONDS", time.Second, 30),
		SaveDebounce:   getEnvDuration("SAVE_DEBOUNCE_MS", time.Millisecond, 500),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration reads a positive integer count of unit.
func getEnvDuration(key string, unit time.Duration, fallback int) time.Duration {
	value := getEnvInt(key, fallback)
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * unit
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
