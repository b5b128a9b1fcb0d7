package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo-market/internal/economy"
	"cargo-market/internal/snapshot"
)

func TestStorageFromEnvErrors(t *testing.T) {
	t.Setenv("DB_SQLITE_PATH", "")
	t.Setenv("DB_POSTGRES_DSN", "")
	t.Setenv("DATABASE_URL", "")

	t.Setenv("DB_DIALECT", "postgres")
	s, err := Load("")
	require.NoError(t, err)
	_, err = s.Storage()
	if err == nil || !strings.Contains(err.Error(), "requires DB_POSTGRES_DSN or DATABASE_URL") {
		t.Fatalf("expected postgres DSN error, got %v", err)
	}

	t.Setenv("DB_DIALECT", "bogus")
	s, err = Load("")
	require.NoError(t, err)
	_, err = s.Storage()
	if err == nil || !strings.Contains(err.Error(), "unsupported DB_DIALECT") {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
}

func TestStorageSelection(t *testing.T) {
	t.Setenv("DB_DIALECT", "")
	t.Setenv("SNAPSHOT_PATH", "")
	s, err := Load("")
	require.NoError(t, err)
	st, err := s.Storage()
	require.NoError(t, err)
	assert.False(t, st.SQL)
	assert.Equal(t, "game_state.json", st.Path)

	t.Setenv("DB_DIALECT", "Postgres")
	t.Setenv("DB_POSTGRES_DSN", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/cargo")
	s, err = Load("")
	require.NoError(t, err)
	st, err = s.Storage()
	require.NoError(t, err)
	assert.Equal(t, snapshot.DialectPostgres, st.Dialect)
	assert.Equal(t, "postgres://localhost/cargo", st.DSN)

	dbPath := filepath.Join(t.TempDir(), "sub", "state.sqlite")
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("DB_SQLITE_PATH", dbPath)
	s, err = Load("")
	require.NoError(t, err)
	st, err = s.Storage()
	require.NoError(t, err)
	assert.True(t, st.SQL)
	assert.Equal(t, dbPath, st.DSN)
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestLoadDefaultsAndDotEnv(t *testing.T) {
	t.Setenv("ADDR", "")
	t.Setenv("BACKUP_KEEP", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	s, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, 24, s.BackupKeep)
	assert.Equal(t, 5.0, s.RateLimitRPS)
	assert.Equal(t, "@hourly", s.BackupSchedule)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_FORMAT=json\n"), 0o644))
	t.Setenv("LOG_FORMAT", "")
	os.Unsetenv("LOG_FORMAT")
	s, err = Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoadEconomyBuiltin(t *testing.T) {
	d, err := LoadEconomy("")
	require.NoError(t, err)

	assert.Equal(t, []string{"Player 1", "Player 2", "Player 3", "Player 4"}, d.Players)
	assert.Equal(t, 100, d.StartingBalance)
	assert.Equal(t, "Le Havre", d.SelectedCity)
	assert.Equal(t, economy.DefaultDepotCity, d.DepotCity)
	assert.Equal(t, economy.UpgradePricing{StartCost: 300, UpgradeStep: 200}, d.UpgradePricing)
	assert.Len(t, d.Market, 8)
	assert.Equal(t, 40, d.Market["Le Havre"]["Electronics"])
	assert.Empty(t, d.Market[economy.DefaultDepotCity])
}

func TestLoadEconomyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.yaml")
	yaml := "starting_balance: 250\nupgrade_pricing:\n  start_cost: 50\n  upgrade_step: 75\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	d, err := LoadEconomy(path)
	require.NoError(t, err)
	assert.Equal(t, 250, d.StartingBalance)
	assert.Equal(t, economy.UpgradePricing{StartCost: 50, UpgradeStep: 75}, d.UpgradePricing)
	assert.Len(t, d.Players, 4, "absent fields keep built-in values")
}

func TestLoadEconomyInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selected_city: Atlantis\nplayers: [A, A]\n"), 0o644))

	_, err := LoadEconomy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Atlantis")
	assert.Contains(t, err.Error(), "duplicate")

	_, err = LoadEconomy(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
