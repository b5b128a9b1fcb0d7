package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported DB_DIALECT %q", string(d))
	}
}

// snapshotID is the key of the single stored row.
const snapshotID = 1

// SQLBackend keeps the document as one row of game_snapshots.
type SQLBackend struct {
	dialect Dialect
	db      *sqlx.DB
}

// OpenSQL connects, pings and migrates a database for dialect.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	b := NewSQLBackend(db, dialect)
	if err := b.Migrate(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLBackend wraps an open handle. Call Migrate before first use.
func NewSQLBackend(db *sqlx.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{dialect: dialect, db: db}
}

func (b *SQLBackend) Dialect() Dialect { return b.dialect }

// Migrate applies embedded migrations not yet recorded in schema_migrations,
// each in its own transaction.
func (b *SQLBackend) Migrate(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	if _, err := b.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var versions []string
	if err := b.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", b.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		version := path.Base(file)
		if applied[version] {
			continue
		}
		stmt, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := b.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(stmt)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		record := b.db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, record, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func (b *SQLBackend) Read(ctx context.Context) ([]byte, error) {
	var payload string
	q := b.db.Rebind("SELECT payload FROM game_snapshots WHERE id = ?")
	err := b.db.GetContext(ctx, &payload, q, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return []byte(payload), nil
}

// Write replaces the stored row inside one transaction.
func (b *SQLBackend) Write(ctx context.Context, doc []byte) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM game_snapshots"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear game_snapshots: %w", err)
	}
	insert := b.db.Rebind("INSERT INTO game_snapshots (id, schema_version, payload, updated_at) VALUES (?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, insert, snapshotID, CurrentVersion, string(doc), time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert game_snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
