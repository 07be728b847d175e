// Package config loads the server configuration from environment variables,
// falling back to defaults suitable for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIAddr         = ":8080"
	defaultSweepInterval   = 5 * time.Minute // empty-room sweeper period
	defaultChatHistoryMax  = 500             // chat messages retained per room
	defaultBoardHistoryMax = 2000            // whiteboard ops retained per room
)

// defaultAllowedOrigins covers the local frontend dev servers.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:5173",
}

// Config holds the runtime settings of the signaling server.
type Config struct {
	APIAddr         string        // HTTP listen address
	AllowedOrigins  []string      // CORS allow-list
	SweepInterval   time.Duration // how often the empty-room sweeper runs
	ChatHistoryMax  int           // per-room chat log cap
	BoardHistoryMax int           // per-room whiteboard log cap
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		APIAddr:         envOr("API_ADDR", defaultAPIAddr),
		AllowedOrigins:  envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		SweepInterval:   time.Duration(envInt("SWEEP_INTERVAL_SEC", int(defaultSweepInterval/time.Second))) * time.Second,
		ChatHistoryMax:  envInt("CHAT_HISTORY_MAX", defaultChatHistoryMax),
		BoardHistoryMax: envInt("BOARD_HISTORY_MAX", defaultBoardHistoryMax),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
