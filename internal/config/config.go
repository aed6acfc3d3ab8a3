// Package config loads runtime settings from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the lesson runtime.
type Config struct {
	APIBaseURL string `yaml:"api_base_url"`
	Token      string `yaml:"token"`
	Locale     string `yaml:"locale"`
	DBPath     string `yaml:"db_path"`

	// HTTPTimeoutSeconds bounds every API call. Zero means the client
	// default.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIBaseURL: "http://localhost:5000/api",
		Locale:     "en",
	}
}

// Load reads the config file at path (DefaultPath when empty), applies
// env overrides, and normalizes the locale. A missing file is fine:
// defaults plus env apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	locale, err := NormalizeLocale(cfg.Locale)
	if err != nil {
		return Config{}, err
	}
	cfg.Locale = locale

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPEAKQUEST_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SPEAKQUEST_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("SPEAKQUEST_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv("SPEAKQUEST_DB"); v != "" {
		cfg.DBPath = v
	}
}

// NormalizeLocale canonicalizes a locale string to its lowercase base
// language ("EN-us" and "TL" become "en" and "tl").
func NormalizeLocale(s string) (string, error) {
	if s == "" {
		return "en", nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("locale %q: %w", s, err)
	}
	base, _ := tag.Base()
	return strings.ToLower(base.String()), nil
}

// DefaultPath resolves the config file path:
// 1. $XDG_CONFIG_HOME/speakquest/config.yaml
// 2. ~/.config/speakquest/config.yaml
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "speakquest", "config.yaml"), nil
}
