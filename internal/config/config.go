// Package config loads kolmodin's configuration from environment
// variables: prefix KOLMODIN_, "__" as the nesting separator, "," as the
// list separator. No config-file parser — the surface here is small
// enough that env vars alone cover it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Server holds the HTTP surface's own settings.
type Server struct {
	Port            string
	AdminAPIKey     string
	CORSOrigins     []string
	RateLimitPerMin int
}

// Twitch holds the credentials used to mint app access tokens (§6).
type Twitch struct {
	ClientID     string
	ClientSecret string
}

// Games controls which game-type tags the Lobby Manager will create (§4.7).
type Games struct {
	EnabledTypes map[string]bool
}

// Content describes the external content cache that supplies the
// Twitch-channel allow-list consulted by the Lobby Manager (§4.7 step 2).
// The cache itself is an external collaborator (out of scope, §1); this
// is only the descriptor used to reach it.
type Content struct {
	SourceURL string
}

// Cache configures the optional Redis-backed rate limiter.
type Cache struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
}

// Config is the fully loaded, validated configuration for one process.
type Config struct {
	Server     Server
	Twitch     Twitch
	Games      Games
	Content    Content
	Cache      Cache
	YouTubeKey string // optional; required only by game types needing it
	LogLevel   string
	LogPretty  bool
}

// defaultGameTypes lists every registered game type, used when the
// enabled-types setting is unset.
var defaultGameTypes = []string{"helloworld", "echo"}

// Load reads and validates configuration from the environment. It fails
// fast (returns an error, never panics) on any missing required value —
// the caller is expected to log.Fatal it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Port:            getEnv("KOLMODIN_SERVER__PORT", "8080"),
			AdminAPIKey:     os.Getenv("KOLMODIN_SERVER__ADMIN_API_KEY"),
			CORSOrigins:     getEnvList("KOLMODIN_SERVER__CORS_ORIGINS", nil),
			RateLimitPerMin: getEnvInt("KOLMODIN_SERVER__RATE_LIMIT_PER_MINUTE", 30),
		},
		Twitch: Twitch{
			ClientID:     os.Getenv("KOLMODIN_TWITCH__CLIENT_ID"),
			ClientSecret: os.Getenv("KOLMODIN_TWITCH__CLIENT_SECRET"),
		},
		Content: Content{
			SourceURL: os.Getenv("KOLMODIN_CONTENT__SOURCE_URL"),
		},
		Cache: Cache{
			Enabled:  getEnv("KOLMODIN_CACHE__ENABLED", "false") == "true",
			Host:     getEnv("KOLMODIN_CACHE__HOST", "localhost"),
			Port:     getEnv("KOLMODIN_CACHE__PORT", "6379"),
			Password: os.Getenv("KOLMODIN_CACHE__PASSWORD"),
		},
		YouTubeKey: os.Getenv("KOLMODIN_YOUTUBE__API_KEY"),
		LogLevel:   getEnv("KOLMODIN_LOG__LEVEL", "info"),
		LogPretty:  getEnv("KOLMODIN_LOG__PRETTY", "false") == "true",
	}

	enabledTypes := getEnvList("KOLMODIN_GAMES__ENABLED_TYPES", defaultGameTypes)
	cfg.Games.EnabledTypes = make(map[string]bool, len(enabledTypes))
	for _, t := range enabledTypes {
		cfg.Games.EnabledTypes[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var missing []string
	if cfg.Server.AdminAPIKey == "" {
		missing = append(missing, "KOLMODIN_SERVER__ADMIN_API_KEY")
	}
	if cfg.Twitch.ClientID == "" {
		missing = append(missing, "KOLMODIN_TWITCH__CLIENT_ID")
	}
	if cfg.Twitch.ClientSecret == "" {
		missing = append(missing, "KOLMODIN_TWITCH__CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
