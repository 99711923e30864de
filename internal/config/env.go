package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment keys that override the config file.
const (
	EnvToken    = "TELEGRAM_TOKEN"
	EnvAdmin    = "ADMIN_USERNAME"
	EnvDBPath   = "TOTO_DB_PATH"
	EnvLogLevel = "TOTO_LOG_LEVEL"
)

// LoadDotenv loads KEY=VALUE files into the process environment. Missing files
// are skipped; variables already set win over the file.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays environment overrides onto cfg using lookup.
// A nil lookup reads the process environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvAdmin); ok {
		for _, name := range strings.Split(v, ",") {
			name = normalizeUsername(name)
			if name == "" || containsFold(cfg.Telegram.AdminUsernames, name) {
				continue
			}
			cfg.Telegram.AdminUsernames = append(cfg.Telegram.AdminUsernames, name)
		}
	}
	if v, ok := get(EnvDBPath); ok {
		cfg.Storage.Path = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
}

func normalizeUsername(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(normalizeUsername(v), s) {
			return true
		}
	}
	return false
}
