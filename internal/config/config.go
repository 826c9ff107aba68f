// internal/config/config.go
//
// Server configuration.
// Sources, later ones winning:
//   1. Built-in defaults (below).
//   2. An optional YAML file (crossword.yaml in the working directory, or the
//      path given to Load).
//   3. Environment variables, including those loaded from .env by godotenv.
//
// Keys are the upper-cased environment names, e.g. PORT, LOG_LEVEL, DB_PATH.

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server reads.
type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	AppEnv   string `mapstructure:"app_env"`
	DBPath   string `mapstructure:"db_path"`

	// Puzzle source: PuzzleBaseURL wins over PuzzleDir; both empty means
	// the puzzles embedded in the binary.
	PuzzleBaseURL string        `mapstructure:"puzzle_base_url"`
	PuzzleDir     string        `mapstructure:"puzzle_dir"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`

	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTExpiresDays int    `mapstructure:"jwt_expires_days"`
	CookieName     string `mapstructure:"cookie_name"`
	AnonCookieName string `mapstructure:"anon_cookie_name"`
	ClientOrigin   string `mapstructure:"client_origin"`

	DailySalt string `mapstructure:"daily_salt"`
}

var defaults = map[string]any{
	"port":             "5175",
	"log_level":        "info",
	"app_env":          "development",
	"db_path":          "./data/crossword.db",
	"puzzle_base_url":  "",
	"puzzle_dir":       "",
	"fetch_timeout":    "10s",
	"jwt_secret":       "dev_secret_change_me",
	"jwt_expires_days": 14,
	"cookie_name":      "crossword_token",
	"anon_cookie_name": "crossword_anon",
	"client_origin":    "http://localhost:5173",
	"daily_salt":       "local_dev_salt",
}

// Load reads .env (if present), the YAML file at path (or crossword.yaml if
// path is empty and the file exists) and the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	vp := viper.New()
	for k, v := range defaults {
		vp.SetDefault(k, v)
	}
	vp.AutomaticEnv()

	vp.SetConfigType("yaml")
	if path != "" {
		vp.SetConfigFile(path)
	} else {
		vp.SetConfigName("crossword")
		vp.AddConfigPath(".")
	}
	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config %s: %w", filepath.Base(path), err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether cookies must be Secure/SameSite=None.
func (c Config) Production() bool { return c.AppEnv == "production" }

func (c Config) validate() error {
	if c.Port == "" {
		return errors.New("config: PORT is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.JWTExpiresDays <= 0 {
		return fmt.Errorf("config: JWT_EXPIRES_DAYS must be positive, got %d", c.JWTExpiresDays)
	}
	if c.CookieName == "" || c.AnonCookieName == "" || c.CookieName == c.AnonCookieName {
		return errors.New("config: COOKIE_NAME and ANON_COOKIE_NAME must be set and differ")
	}
	return nil
}
