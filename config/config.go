/*
Package config loads runtime settings for the brokerage binaries.

PURPOSE:
  Flags win over environment, environment wins over defaults. A .env
  file can seed the environment during local development.

SETTINGS:
  Flag              Env              Default
  -db               BROKERAGE_DB     brokerage.db  (":memory:" for a throwaway store)
  -port             PORT             8080
  -log-level        LOG_LEVEL        info
  -log-format       LOG_FORMAT       json
  -rollup-interval  ROLLUP_INTERVAL  1h  (0 disables the month-close scheduler)

.ENV FILES:
  LoadDotEnv reads KEY=VALUE files with godotenv. Variables already in
  the environment are never overwritten, and missing files are skipped.
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDBPath    = "brokerage.db"
	DefaultPort      = 8080
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRollupInterval = time.Hour
)

type Config struct {
	DBPath    string
	Port      int
	LogLevel  string
	LogFormat string

	// RollupInterval is how often cmd/server re-runs the rollup for the
	// last closed month.
	RollupInterval time.Duration
}

// Load parses args (without the program name) on top of the environment.
func Load(name string, args []string) (*Config, error) {
	port, err := getEnvInt("PORT", DefaultPort)
	if err != nil {
		return nil, err
	}
	interval, err := getEnvDuration("ROLLUP_INTERVAL", DefaultRollupInterval)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		DBPath:    getEnv("BROKERAGE_DB", DefaultDBPath),
		Port:      port,
		LogLevel:  getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat: getEnv("LOG_FORMAT", DefaultLogFormat),

		RollupInterval: interval,
	}

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	flags.DurationVar(&cfg.RollupInterval, "rollup-interval", cfg.RollupInterval, "month-close rollup interval (0 disables)")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "database path is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.RollupInterval < 0 {
		problems = append(problems, fmt.Sprintf("invalid rollup interval %s: must not be negative", c.RollupInterval))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be json or console", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadDotEnv copies variables from the given files (default ".env") into
// the process environment without overriding anything already set.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		vars, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("config: read %s: %w", file, err)
		}
		for k, v := range vars {
			if _, set := os.LookupEnv(k); set {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return fmt.Errorf("config: set %s: %w", k, err)
			}
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s '%s': must be a number", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s '%s': must be a duration", key, v)
	}
	return d, nil
}
