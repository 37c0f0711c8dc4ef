// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite — no CGo, no C
// compiler, works everywhere Go works. sqlx sits on top of database/sql for
// struct scanning via `db` tags.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps an sqlx connection pool. The typed accessors below hand out the
// per-entity repositories, all sharing the same pool.
type DB struct {
	conn *sqlx.DB
}

// Users returns the user/profile repository.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Issues returns the issue repository.
func (db *DB) Issues() *IssueDB { return &IssueDB{conn: db.conn} }

// Tokens returns the bearer token repository.
func (db *DB) Tokens() *TokenDB { return &TokenDB{conn: db.conn} }

// Social returns the social association repository.
func (db *DB) Social() *SocialDB { return &SocialDB{conn: db.conn} }

// New opens a SQLite database at dbPath (":memory:" for tests) and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight; foreign keys
	// are off by default in SQLite and we rely on them.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	// user_id is UNIQUE: one stable token per user, issued once and reused.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tokens (
			user_id    TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			key        TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tokens table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS social_associations (
			id          TEXT PRIMARY KEY,
			provider    TEXT NOT NULL,
			external_id TEXT NOT NULL,
			user_id     TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, external_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating social_associations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS issues (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open',
			severity    TEXT NOT NULL DEFAULT 'medium',
			created_by  TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_issues_created_by ON issues(created_by);
		CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
		CREATE INDEX IF NOT EXISTS idx_issues_severity ON issues(severity);
		CREATE INDEX IF NOT EXISTS idx_issues_created_at ON issues(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating issues table: %w", err)
	}

	return nil
}
