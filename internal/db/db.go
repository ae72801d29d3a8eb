// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
	Queries *store.Queries
}

// New opens a SQLite database for the given data source name, applies the
// connection defaults the league writers depend on, runs embedded migrations,
// and returns a DB with queries bound to the connection.
func New(dataSourceName string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", withSQLiteDefaults(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return &DB{
		DB:      sqlDB,
		Queries: store.New(sqlDB),
	}, nil
}

// NewFromConfig creates the database directory when needed and opens the
// configured sqlite file through New.
func NewFromConfig(cfg *config.Config) (*DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
		dsn := cfg.Database.Filename
		if cfg.Database.BusyTimeoutMS > 0 && !strings.Contains(dsn, "_busy_timeout=") {
			dsn = appendDSNParam(dsn, fmt.Sprintf("_busy_timeout=%d", cfg.Database.BusyTimeoutMS))
		}
		return New(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// withSQLiteDefaults enables foreign keys, makes every transaction take the
// write lock at BEGIN (_txlock=immediate) and waits on a busy database rather
// than failing. Result recording relies on the immediate lock to serialise
// standings updates.
func withSQLiteDefaults(dataSourceName string) string {
	if !strings.Contains(dataSourceName, "_fk=") {
		dataSourceName = appendDSNParam(dataSourceName, "_fk=1")
	}
	if !strings.Contains(dataSourceName, "_txlock=") {
		dataSourceName = appendDSNParam(dataSourceName, "_txlock=immediate")
	}
	if !strings.Contains(dataSourceName, "_busy_timeout=") {
		dataSourceName = appendDSNParam(dataSourceName, "_busy_timeout=5000")
	}
	return dataSourceName
}

func appendDSNParam(dataSourceName, param string) string {
	if strings.Contains(dataSourceName, "?") {
		return dataSourceName + "&" + param
	}
	return dataSourceName + "?" + param
}

func runMigrations(db *sql.DB) error {
	m, err := Migrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// Migrator binds the embedded migrations to an open sqlite handle. Closing
// the returned instance closes db as well.
func Migrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("could not create source: %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", source,
		"sqlite3", driver,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

// WithTx creates a new DB instance with the given transaction
func (db *DB) WithTx(tx *sql.Tx) *DB {
	return &DB{
		DB:      db.DB,
		Queries: store.New(tx),
	}
}

// BeginTx starts a transaction
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	return tx, nil
}

// RunInTx runs fn in a transaction, rolling back on error or panic.
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txDB := db.WithTx(tx)
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}

	return nil
}
