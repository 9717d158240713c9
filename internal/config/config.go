package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "SCHEMAEXTRACT_"

// Config holds runtime settings. Values come from the environment (a .env
// file in the working directory is loaded first) and may be overridden by
// command-line flags.
type Config struct {
	// Workers bounds concurrent file analysis; 0 means GOMAXPROCS.
	Workers int
	// CacheSize bounds the parse cache; 0 means the analyzer default.
	CacheSize int
	LogLevel  string
	LogPretty bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: firstNonEmpty(strings.TrimSpace(os.Getenv(envPrefix+"LOG_LEVEL")), "info"),
	}
	var err error
	if cfg.Workers, err = envInt("WORKERS"); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = envInt("CACHE_SIZE"); err != nil {
		return nil, err
	}
	if cfg.LogPretty, err = envBool("LOG_PRETTY"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envInt(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("config: %s%s=%q: want a non-negative integer", envPrefix, name, raw)
	}
	return v, nil
}

func envBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s%s=%q: %w", envPrefix, name, raw, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
