package router

import (
	"strconv"
	"strings"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/env"
)

var BaseURL, CORSOrigin, BodyLimit string
var GZipLevel int
var CacheTTLSeconds int
var bodyLimitBytes int

func init() {
	BaseURL = strings.TrimRight(strings.TrimSpace(env.GetEnvStringOrDefault("HTTP_BASE_URL", "")), "/")
	if BaseURL != "" {
		BaseURL = "/" + strings.TrimLeft(BaseURL, "/")
	}

	CORSOrigin = env.GetEnvStringOrDefault("HTTP_CORS_ORIGIN", "*")

	// Relay bodies are plain text; 1M is plenty.
	BodyLimit = env.GetEnvStringOrDefault("HTTP_BODY_LIMIT_SIZE", "1M")
	bodyLimitBytes = parseBodyLimit(BodyLimit)

	GZipLevel = env.GetEnvIntOrDefault("HTTP_GZIP_LEVEL", 1)

	// Only the static docs are cached.
	CacheTTLSeconds = env.GetEnvIntOrDefault("HTTP_CACHE_TTL_SECONDS", 300)
}

func BodyLimitBytes() int {
	return bodyLimitBytes
}

func parseBodyLimit(limit string) int {
	const defaultLimit = 1024 * 1024
	limit = strings.TrimSpace(strings.ToUpper(limit))
	if limit == "" {
		return defaultLimit
	}
	multiplier := 1
	for suffix, m := range map[string]int{"K": 1 << 10, "M": 1 << 20, "G": 1 << 30} {
		if strings.HasSuffix(limit, suffix) {
			multiplier = m
			limit = strings.TrimSuffix(limit, suffix)
			break
		}
	}
	value, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || value <= 0 {
		return defaultLimit
	}
	return value * multiplier
}
