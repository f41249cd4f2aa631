package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var DebugMode = os.Getenv("DEBUG_MODE") == "true"

type Config struct {
	// Venue symbols to track, e.g. XBTUSD. Symbols prefixed with "." are
	// indices and are not checked against the active instrument list.
	Symbols []string
	// Websocket channels to subscribe to.
	Channels []string

	WsEndpoint   string
	RestEndpoint string
	MetricsAddr  string
}

func Load() *Config {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	return &Config{
		Symbols:      splitOrDefault(os.Getenv("BITMEX_SYMBOLS"), []string{"XBTUSD"}),
		Channels:     splitOrDefault(os.Getenv("BITMEX_CHANNELS"), []string{"trade", "orderBookL2", "quote", "funding", "instrument"}),
		WsEndpoint:   stringOrDefault(os.Getenv("BITMEX_WS_ENDPOINT"), "wss://www.bitmex.com/realtime"),
		RestEndpoint: stringOrDefault(os.Getenv("BITMEX_REST_ENDPOINT"), "https://www.bitmex.com/api/v1"),
		MetricsAddr:  stringOrDefault(os.Getenv("METRICS_ADDR"), ":8080"),
	}
}

func splitOrDefault(raw string, def []string) []string {
	if strings.TrimSpace(raw) == "" {
		return def
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func stringOrDefault(raw string, def string) string {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	return raw
}
