package utils

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func GetEnvOrSetDefault(key string, defaultVal string) string {
	if os.Getenv(key) == "" {
		os.Setenv(key, defaultVal)
		return defaultVal
	}

	return os.Getenv(key)
}

func GetEnvInt(key string, defaultVal int) int {
	raw := GetEnvOrSetDefault(key, strconv.Itoa(defaultVal))
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}

func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	raw := GetEnvOrSetDefault(key, defaultVal.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}

func GetEnvBool(key string, defaultVal bool) bool {
	raw := GetEnvOrSetDefault(key, strconv.FormatBool(defaultVal))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}
