package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"game_state.json", "game_state.json.zst"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "nested", name)
			store := New(NewFileBackend(path), testDefaults())

			s, err := store.Load(ctx)
			require.NoError(t, err, "missing file loads defaults")
			assert.Len(t, s.Players, 2)

			_, err = s.AdjustBalance("Player 2", 40, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, s))

			back, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 140, back.Players["Player 2"].Balance)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			require.Len(t, entries, 1, "temp files must not be left behind")

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			if strings.HasSuffix(name, ".zst") {
				dec, err := zstd.NewReader(nil)
				require.NoError(t, err)
				defer dec.Close()
				raw, err = dec.DecodeAll(raw, nil)
				require.NoError(t, err)
			}
			assert.Contains(t, string(raw), `"schema_version": 3`)
		})
	}
}

func TestFileBackendReadMissing(t *testing.T) {
	_, err := NewFileBackend(filepath.Join(t.TempDir(), "none.json")).Read(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStoreLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"players": 3}`), 0o644))
	_, err := New(NewFileBackend(path), testDefaults()).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.sqlite")

	backend, err := OpenSQL(ctx, DialectSQLite, dbPath)
	require.NoError(t, err)

	_, err = backend.Read(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	store := New(backend, testDefaults())
	s, err := store.Load(ctx)
	require.NoError(t, err)
	s.PushNews("first")
	require.NoError(t, store.Save(ctx, s))
	s.PushNews("second")
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Close())

	reopened, err := OpenSQL(ctx, DialectSQLite, dbPath)
	require.NoError(t, err, "migrations must be idempotent")
	defer reopened.Close()

	var rows int
	require.NoError(t, reopened.db.GetContext(ctx, &rows, "SELECT COUNT(*) FROM game_snapshots"))
	assert.Equal(t, 1, rows)
	var migrations int
	require.NoError(t, reopened.db.GetContext(ctx, &migrations, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, migrations)

	back, err := New(reopened, testDefaults()).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", back.BreakingNews)
}

func TestOpenSQLUnsupportedDialect(t *testing.T) {
	_, err := OpenSQL(context.Background(), Dialect("bogus"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DIALECT")
}

func TestSQLWriteRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	backend := NewSQLBackend(sqlx.NewDb(db, "sqlmock"), DialectSQLite)
	defer backend.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM game_snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO game_snapshots").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = backend.Write(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLReadEmptyTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	backend := NewSQLBackend(sqlx.NewDb(db, "sqlmock"), DialectSQLite)
	defer backend.Close()

	mock.ExpectQuery("SELECT payload FROM game_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err = backend.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotatorKeepsNewest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := NewRotator(dir, 2)
	s := testDefaults().NewGameState()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var written []string
	for i := 0; i < 4; i++ {
		path, err := r.Backup(ctx, s, start.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		written = append(written, path)
	}

	files, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, written[2:], files)
	assert.Equal(t, "game_state-20260301T130000Z.json.zst", filepath.Base(files[1]))

	back, err := New(NewFileBackend(files[1]), testDefaults()).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.PlayerNames(), back.PlayerNames())
}
