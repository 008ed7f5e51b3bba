package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name: "postgres",
	createStmt: []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			cache_key TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			stored_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires_at ON analysis_cache(expires_at)`,
	},
	selectStmt: `SELECT result, stored_at, expires_at FROM analysis_cache WHERE cache_key = $1`,
	upsertStmt: `INSERT INTO analysis_cache (cache_key, result, stored_at, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET result = EXCLUDED.result, stored_at = EXCLUDED.stored_at, expires_at = EXCLUDED.expires_at`,
	deleteStmt: `DELETE FROM analysis_cache WHERE cache_key = $1`,
	expireStmt: `DELETE FROM analysis_cache WHERE expires_at <= $1`,
}

// PostgresCache is a PostgreSQL implementation of core.ResultCache
type PostgresCache struct {
	*sqlCache
}

// NewPostgresCache creates a new PostgreSQL cache
func NewPostgresCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*PostgresCache, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	base, err := newSQLCache(db, postgresDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &PostgresCache{sqlCache: base}, nil
}
