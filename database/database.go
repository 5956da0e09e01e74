package database

// Database manages the SQL connection and the schema versions of the tables
// owned by the application packages.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const globalSchema = `
CREATE TABLE IF NOT EXISTS _versions (
	type TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	updated TIMESTAMP NOT NULL
)
`

const updateVersionSql = `
INSERT INTO _versions (type, version, updated)
VALUES ($1, $2, $3)
ON CONFLICT (type)
DO UPDATE SET version = $2, updated = $3;
`

// Migration brings the tables of one package up to Version. Apply runs inside
// the initialization transaction and only when the recorded version is lower.
type Migration struct {
	Name    string
	Version int
	Apply   func(tx *sqlx.Tx) error
}

type Database struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// SQLiteDSN appends the connection options the application relies on to a
// SQLite file path. Immediate transactions make concurrent writers wait on the
// busy timeout instead of failing when upgrading a read lock.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprintf("%d", busyTimeout.Milliseconds()))
	params.Set("_txlock", "immediate")
	params.Set("_foreign_keys", "on")
	return "file:" + path + "?" + params.Encode()
}

// Connect opens a new database connection. The schema is not touched until
// Initialize is called.
func Connect(driverName string, dataSourceName string, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sqlx.Connect(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	return &Database{db: db, logger: logger}, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	return &Database{db: db, logger: logger}
}

// Initialize creates the versions table and applies every migration whose
// recorded version is behind. Either all migrations are applied or none are.
func (d *Database) Initialize(ctx context.Context, migrations ...Migration) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(globalSchema); err != nil {
		return fmt.Errorf("failed to create versions table: %w", err)
	}

	var versions []struct {
		Type    string `db:"type"`
		Version int    `db:"version"`
	}
	if err := tx.Select(&versions, "SELECT type, version FROM _versions"); err != nil {
		return fmt.Errorf("failed to read schema versions: %w", err)
	}
	current := make(map[string]int, len(versions))
	for _, v := range versions {
		current[v.Type] = v.Version
	}

	for _, m := range migrations {
		if current[m.Name] >= m.Version {
			d.logger.Debug("Schema up to date", "type", m.Name, "version", current[m.Name])
			continue
		}
		if err := m.Apply(tx); err != nil {
			return fmt.Errorf("failed to migrate %s to version %d: %w", m.Name, m.Version, err)
		}
		if _, err := tx.Exec(updateVersionSql, m.Name, m.Version, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to record version of %s: %w", m.Name, err)
		}
		d.logger.Info("Migrated schema", "type", m.Name, "from", current[m.Name], "to", m.Version)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction. The transaction is committed only when
// fn returns nil; errors and panics roll it back.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Version returns the recorded schema version for name, or 0.
func (d *Database) Version(ctx context.Context, name string) (int, error) {
	var version int
	err := d.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM _versions WHERE type = $1", name)
	return version, err
}

func (d *Database) GetDB() *sqlx.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.db.Close()
}
