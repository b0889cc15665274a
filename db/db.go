package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"seclab/crypto"
	"seclab/models"

	_ "github.com/mattn/go-sqlite3"
)

// Account is a seeded login.
type Account struct {
	Username string
	Password string
}

// DefaultAccounts are created by Seed. The passwords are weak on purpose and
// shared by both variants.
var DefaultAccounts = []Account{
	{Username: "admin", Password: "SuperSecret"},
	{Username: "elliot", Password: "123123123"},
	{Username: "tim", Password: "12345678"},
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'standard',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS sessions_username ON sessions(username);

CREATE TABLE IF NOT EXISTS notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	public INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS notes_owner ON notes(owner);
`

// Open opens the SQLite file at dataSourceName and creates the schema.
func Open(dataSourceName string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dataSourceName, err)
	}

	// Each connection to ":memory:" is a separate database.
	if strings.Contains(dataSourceName, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return conn, nil
}

// Seed inserts any missing default account, storing its password through
// hasher. Existing accounts are left alone.
func Seed(ctx context.Context, conn *sql.DB, hasher crypto.PasswordHasher) error {
	for _, acct := range DefaultAccounts {
		var count int
		err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", acct.Username).Scan(&count)
		if err != nil {
			return fmt.Errorf("check for %s: %w", acct.Username, err)
		}
		if count > 0 {
			continue
		}

		rep, err := hasher.Hash(acct.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", acct.Username, err)
		}
		_, err = conn.ExecContext(ctx, "INSERT INTO users (username, password, role) VALUES (?, ?, ?)",
			acct.Username, rep, string(models.RoleStandard))
		if err != nil {
			return fmt.Errorf("create %s: %w", acct.Username, err)
		}
		slog.InfoContext(ctx, "seeded default account", "username", acct.Username, "hasher", hasher.Name())
	}
	return nil
}
