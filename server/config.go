package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr              string        `toml:"addr"`
	DatabaseURL       string        `toml:"database_url"`
	RedisURL          string        `toml:"redis_url"`
	BoardCacheTTL     time.Duration `toml:"board_cache_ttl"`
	SessionCookieName string        `toml:"session_cookie_name"`
	SessionTTL        time.Duration `toml:"session_ttl"`
	CookieSecure      bool          `toml:"cookie_secure"`
	CookieSameSite    string        `toml:"cookie_samesite"`
	JWTSecret         string        `toml:"jwt_secret"`
	JWKSURL           string        `toml:"jwks_url"`
	JWTAudience       string        `toml:"jwt_audience"`
	JWTIssuer         string        `toml:"jwt_issuer"`
	DefaultLang       string        `toml:"default_lang"`
	LogLevel          string        `toml:"log_level"`
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := getenv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// loadConfig reads the environment and, when path is set, overlays the keys
// present in that TOML file.
func loadConfig(path string) (Config, error) {
	cfg := Config{
		Addr:              getenv("ADDR", ":8080"),
		DatabaseURL:       getenv("DATABASE_URL", "postgres://postgres:postgres@db:5432/kanban?sslmode=disable"),
		RedisURL:          getenv("REDIS_URL", ""),
		BoardCacheTTL:     getenvDuration("BOARD_CACHE_TTL", 5*time.Minute),
		SessionCookieName: getenv("SESSION_COOKIE_NAME", "kanban_sess"),
		SessionTTL:        getenvDuration("SESSION_TTL", 14*24*time.Hour),
		CookieSecure:      getenv("COOKIE_SECURE", "false") == "true",
		CookieSameSite:    getenv("COOKIE_SAMESITE", "lax"),
		JWTSecret:         getenv("JWT_SECRET", ""),
		JWKSURL:           getenv("JWKS_URL", ""),
		JWTAudience:       getenv("JWT_AUDIENCE", ""),
		JWTIssuer:         getenv("JWT_ISSUER", ""),
		DefaultLang:       getenv("DEFAULT_LANG", "en"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c Config) sameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
