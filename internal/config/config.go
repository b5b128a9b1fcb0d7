// Package config reads process settings from the environment, optionally
// seeded from a .env file, and the economy defaults from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"cargo-market/internal/snapshot"
)

type Settings struct {
	Addr string `env:"ADDR,default=:8080"`

	DBDialect    string `env:"DB_DIALECT"`
	SQLitePath   string `env:"DB_SQLITE_PATH"`
	PostgresDSN  string `env:"DB_POSTGRES_DSN"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SnapshotPath string `env:"SNAPSHOT_PATH,default=game_state.json"`
	EconomyFile  string `env:"ECONOMY_FILE"`

	BackupDir      string `env:"BACKUP_DIR"`
	BackupSchedule string `env:"BACKUP_SCHEDULE,default=@hourly"`
	BackupKeep     int    `env:"BACKUP_KEEP,default=24"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=10"`
}

// Load reads envFile into the environment if it exists, without overriding
// variables already set, then decodes Settings.
func Load(envFile string) (Settings, error) {
	var s Settings
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return s, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	if err := envdecode.Decode(&s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return s, fmt.Errorf("decode environment: %w", err)
	}
	return s, nil
}

// Storage says where snapshots live.
type Storage struct {
	// SQL is false for the file backend.
	SQL     bool
	Dialect snapshot.Dialect
	DSN     string
	Path    string
}

// Storage resolves the backend from DB_DIALECT. An empty dialect or "file"
// selects the JSON file at SNAPSHOT_PATH.
func (s Settings) Storage() (Storage, error) {
	dialectRaw := strings.TrimSpace(strings.ToLower(s.DBDialect))
	switch dialectRaw {
	case "", "file":
		return Storage{Path: s.SnapshotPath}, nil
	case string(snapshot.DialectSQLite):
		path := strings.TrimSpace(s.SQLitePath)
		if path == "" {
			path = filepath.Join("tmp", "cargo_market.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Storage{}, fmt.Errorf("create sqlite directory: %w", err)
		}
		return Storage{SQL: true, Dialect: snapshot.DialectSQLite, DSN: path}, nil
	case string(snapshot.DialectPostgres):
		dsn := strings.TrimSpace(s.PostgresDSN)
		if dsn == "" {
			dsn = strings.TrimSpace(s.DatabaseURL)
		}
		if dsn == "" {
			return Storage{}, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
		return Storage{SQL: true, Dialect: snapshot.DialectPostgres, DSN: dsn}, nil
	default:
		return Storage{}, fmt.Errorf("unsupported DB_DIALECT %q", dialectRaw)
	}
}
