// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the binary as a single file.
// No database server to run, which makes it the default for local development
// and the backend every repository test runs against (":memory:").
// Production deployments point DATABASE_URL at Postgres instead.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, so you need a C compiler and cross-compilation
// gets painful. modernc.org/sqlite is a pure Go translation of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/contacts-api/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// SQLite's built-in LOWER only folds ASCII. ulower folds the whole of
// Unicode, so "Östen" matches the term "öst" the way Postgres ILIKE does.
func init() {
	sqlitedrv.MustRegisterDeterministicScalarFunction("ulower", 1, unicodeLower)
}

func unicodeLower(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB wraps a sql.DB connection pool and hands out the two directories.
type DB struct {
	conn     *sql.DB
	users    *UserStore
	contacts *ContactStore
}

// New opens (or creates) the database and brings the schema up to date.
//
// dbPath examples:
//   - "data/contacts.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" gets its own empty database.
	// Pinning the pool to one connection keeps all callers on the same one.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// SQLite ships with foreign keys OFF; contacts.owner_id relies on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	// Concurrent writers wait up to 5s for the lock instead of failing
	// immediately with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{
		conn:     conn,
		users:    &UserStore{conn: conn},
		contacts: &ContactStore{conn: conn},
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:")
}

func (db *DB) Users() repository.UserRepository { return db.users }

func (db *DB) Contacts() repository.ContactRepository { return db.contacts }

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases the pool. Call it on shutdown so the WAL gets checkpointed.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent (IF NOT EXISTS),
// so it runs on every startup.
//
// SQLite has no enum types; the role column is a TEXT with a CHECK constraint.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			email              TEXT NOT NULL UNIQUE,
			hashed_password    TEXT NOT NULL,
			avatar             TEXT,
			is_active          BOOLEAN NOT NULL DEFAULT 1,
			is_verified        BOOLEAN NOT NULL DEFAULT 0,
			verification_token TEXT,
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// The role column arrived after the first release. Databases created
	// before that get it added here, every existing account becoming "user".
	if err := db.addColumnIfNotExists("users", "role",
		`TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin'))`); err != nil {
		return fmt.Errorf("adding role to users: %w", err)
	}

	// Contact email is UNIQUE across all owners, not per owner.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS contacts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name      TEXT NOT NULL,
			last_name       TEXT NOT NULL,
			email           TEXT NOT NULL UNIQUE,
			phone           TEXT NOT NULL,
			birthday        TEXT NOT NULL,
			additional_info TEXT,
			owner_id        INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_owner_id ON contacts(owner_id);
		CREATE INDEX IF NOT EXISTS idx_contacts_first_name ON contacts(first_name);
		CREATE INDEX IF NOT EXISTS idx_contacts_last_name ON contacts(last_name);
	`)
	if err != nil {
		return fmt.Errorf("creating contacts table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
// SQLite doesn't support "ALTER TABLE ADD COLUMN IF NOT EXISTS", so we check
// pragma_table_info first.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate
// value in a UNIQUE column.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// likePattern turns a search term into a case-folded LIKE pattern that
// matches the term anywhere. %, _ and \ in the term match literally.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
