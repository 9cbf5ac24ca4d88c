package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server configuration, read from the environment.
type Config struct {
	Addr string `env:"ADDR" envDefault:"0.0.0.0:8080"`

	// postgres, sqlite, leveldb or memory
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/registry.db"`
	LevelDBPath string `env:"LEVELDB_PATH" envDefault:"./data/registry-leveldb"`

	// Empty disables Redis; the duplicate window is then counted in the store
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ScoreTolerance          int           `env:"SCORE_TOLERANCE" envDefault:"1"`
	RapidDuplicateWindow    time.Duration `env:"RAPID_DUPLICATE_WINDOW" envDefault:"1h"`
	RapidDuplicateThreshold int           `env:"RAPID_DUPLICATE_THRESHOLD" envDefault:"10"`
	MaxTurns                int           `env:"MAX_TURNS" envDefault:"1000"`
	MaxClockSkew            time.Duration `env:"MAX_CLOCK_SKEW" envDefault:"5m"`

	SubmitterHeader  string `env:"SUBMITTER_HEADER" envDefault:"X-User-ID"`
	LeaderboardLimit int    `env:"LEADERBOARD_LIMIT" envDefault:"50"`
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Addr:                    DefaultAddr,
		StoreDriver:             "postgres",
		SQLitePath:              "./data/registry.db",
		LevelDBPath:             "./data/registry-leveldb",
		ScoreTolerance:          DefaultScoreTolerance,
		RapidDuplicateWindow:    DefaultRapidDuplicateWindow,
		RapidDuplicateThreshold: DefaultRapidDuplicateThreshold,
		MaxTurns:                DefaultMaxTurns,
		MaxClockSkew:            DefaultMaxClockSkew,
		SubmitterHeader:         "X-User-ID",
		LeaderboardLimit:        DefaultLeaderboardLimit,
	}
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables")
	} else {
		log.Println("✅ Loaded environment variables from .env")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the registry cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "sqlite", "leveldb", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ScoreTolerance < 0 {
		return fmt.Errorf("SCORE_TOLERANCE must not be negative")
	}
	if c.RapidDuplicateWindow <= 0 {
		return fmt.Errorf("RAPID_DUPLICATE_WINDOW must be positive")
	}
	if c.RapidDuplicateThreshold < 1 {
		return fmt.Errorf("RAPID_DUPLICATE_THRESHOLD must be positive")
	}
	if c.MaxTurns < MinTurn {
		return fmt.Errorf("MAX_TURNS must be at least %d", MinTurn)
	}
	if c.SubmitterHeader == "" {
		return fmt.Errorf("SUBMITTER_HEADER is required")
	}
	if c.LeaderboardLimit <= 0 || c.LeaderboardLimit > MaxLeaderboardLimit {
		return fmt.Errorf("LEADERBOARD_LIMIT must be in [1, %d]", MaxLeaderboardLimit)
	}
	return nil
}
