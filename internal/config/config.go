package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures all runtime configuration derived from environment variables
// and, optionally, a YAML file named by CONFIG_FILE.
type Config struct {
	Port                 string
	AuthToken            string
	LogMode              string
	DBURL                string
	DBAutoMigrate        bool
	ProfileDirectoryURL  string
	ProfilePlayerURL     string
	ProfileAPIKey        string
	ProfileTimeoutSecs   int
	ProfileMinIntervalMS int
	RedisAddr            string
	ResolveCacheTTLSecs  int
	ReadTimeoutSecs      int
	WriteTimeoutSecs     int
	IdleTimeoutSecs      int
	DBMaxConns           int
	DBMinConns           int
	DBMaxIdleSecs        int
	DBMaxLifeSecs        int
	DBConnTimeoutSecs    int
	DBStatementCache     int
}

// Load reads configuration, applying defaults and validation. Environment
// variables take precedence over values from CONFIG_FILE.
func Load() (Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:                 src.getEnv("PORT", "8080"),
		AuthToken:            src.getEnv("AUTH_TOKEN", ""),
		LogMode:              src.getEnv("LOG_MODE", "dev"),
		DBURL:                src.getEnv("DB_URL", ""),
		DBAutoMigrate:        src.getEnvBool("DB_AUTO_MIGRATE", true),
		ProfileDirectoryURL:  src.getEnv("PROFILE_DIRECTORY_URL", "https://api.mojang.com"),
		ProfilePlayerURL:     src.getEnv("PROFILE_PLAYER_URL", "https://api.hypixel.net"),
		ProfileAPIKey:        src.getEnv("PROFILE_API_KEY", ""),
		ProfileTimeoutSecs:   src.getEnvInt("PROFILE_TIMEOUT_SECS", 10),
		ProfileMinIntervalMS: src.getEnvInt("PROFILE_MIN_INTERVAL_MS", 100),
		RedisAddr:            src.getEnv("REDIS_ADDR", ""),
		ResolveCacheTTLSecs:  src.getEnvInt("RESOLVE_CACHE_TTL_SECS", 300),
		ReadTimeoutSecs:      src.getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:     src.getEnvInt("SERVER_WRITE_TIMEOUT", 30),
		IdleTimeoutSecs:      src.getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:           src.getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:           src.getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:        src.getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:        src.getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:    src.getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:     src.getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.ProfileAPIKey == "" {
		return Config{}, fmt.Errorf("PROFILE_API_KEY is required")
	}
	if cfg.ProfileDirectoryURL == "" || cfg.ProfilePlayerURL == "" {
		return Config{}, fmt.Errorf("PROFILE_DIRECTORY_URL and PROFILE_PLAYER_URL must not be empty")
	}
	if cfg.ProfileTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("PROFILE_TIMEOUT_SECS must be positive")
	}
	if cfg.ProfileMinIntervalMS < 0 {
		return Config{}, fmt.Errorf("PROFILE_MIN_INTERVAL_MS must be non-negative")
	}
	if cfg.ResolveCacheTTLSecs < 0 {
		return Config{}, fmt.Errorf("RESOLVE_CACHE_TTL_SECS must be non-negative")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

// source resolves a key from the environment first, then from the optional
// config file. File keys are the lower-cased variable names (db_url, port, ...).
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return src, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return src, fmt.Errorf("CONFIG_FILE: read: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("CONFIG_FILE: parse: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		src.file[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return src, nil
}

func (s source) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return s.file[strings.ToLower(key)]
}

func (s source) getEnv(key, fallback string) string {
	if val := s.lookup(key); val != "" {
		return val
	}
	return fallback
}

func (s source) getEnvInt(key string, fallback int) int {
	if val := s.lookup(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s source) getEnvBool(key string, fallback bool) bool {
	if val := s.lookup(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
