// Package config resolves skyfeed configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultPageSize is used when SKYFEED_PAGE_SIZE is unset or invalid.
const DefaultPageSize = 20

// Config holds everything the feed pipeline needs from the operator.
// Credentials are read-only input and never persisted by this package.
type Config struct {
	Identifier string
	Password   string
	Accounts   []string
	Hashtags   []string
	Blacklist  []string
	PageSize   int
	APIURL     string // base URL override (self-hosted PDS, tests)
	CacheDB    string // path of the session cache database
}

// Load reads configuration from a .env file (if present) and SKYFEED_*
// environment variables. Real environment variables win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Identifier: os.Getenv("SKYFEED_IDENTIFIER"),
		Password:   os.Getenv("SKYFEED_PASSWORD"),
		Accounts:   splitList(os.Getenv("SKYFEED_ACCOUNTS")),
		Hashtags:   splitList(os.Getenv("SKYFEED_HASHTAGS")),
		Blacklist:  splitList(os.Getenv("SKYFEED_BLACKLIST")),
		PageSize:   DefaultPageSize,
		APIURL:     os.Getenv("SKYFEED_API_URL"),
		CacheDB:    os.Getenv("SKYFEED_CACHE_DB"),
	}

	if v := os.Getenv("SKYFEED_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if cfg.CacheDB == "" {
		cfg.CacheDB = filepath.Join(Dir(), "session.db")
	}

	return cfg
}

// Dir returns the directory used for cached state.
func Dir() string {
	if dir := os.Getenv("SKYFEED_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "skyfeed")
}

// splitList parses a comma- or newline-separated list, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
