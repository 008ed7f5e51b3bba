package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	createStmt: []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			cache_key TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			stored_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires_at ON analysis_cache(expires_at)`,
	},
	selectStmt: `SELECT result, stored_at, expires_at FROM analysis_cache WHERE cache_key = ?`,
	upsertStmt: `INSERT OR REPLACE INTO analysis_cache (cache_key, result, stored_at, expires_at) VALUES (?, ?, ?, ?)`,
	deleteStmt: `DELETE FROM analysis_cache WHERE cache_key = ?`,
	expireStmt: `DELETE FROM analysis_cache WHERE expires_at <= ?`,
}

// SQLiteCache is a SQLite implementation of core.ResultCache
type SQLiteCache struct {
	*sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// sqlite3 serialises writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	base, err := newSQLCache(db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &SQLiteCache{sqlCache: base}, nil
}
