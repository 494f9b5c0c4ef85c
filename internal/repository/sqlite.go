package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/opensource-finance/truerev/internal/domain"
)

const sqliteMemory = ":memory:"

// openSQLite opens the pure-Go SQLite driver in WAL mode. The path
// ":memory:" gives a private in-memory database on a single connection.
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./truerev.db"
	}

	var dsn string
	if path == sqliteMemory {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == sqliteMemory {
		// Every new connection would see an empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database %s: %w", path, err)
	}
	return db, nil
}
