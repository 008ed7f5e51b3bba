package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	createStmt: []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			cache_key CHAR(64) PRIMARY KEY,
			result MEDIUMTEXT NOT NULL,
			stored_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_analysis_cache_expires_at (expires_at)
		)`,
	},
	selectStmt: `SELECT result, stored_at, expires_at FROM analysis_cache WHERE cache_key = ?`,
	upsertStmt: `INSERT INTO analysis_cache (cache_key, result, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE result = VALUES(result), stored_at = VALUES(stored_at), expires_at = VALUES(expires_at)`,
	deleteStmt: `DELETE FROM analysis_cache WHERE cache_key = ?`,
	expireStmt: `DELETE FROM analysis_cache WHERE expires_at <= ?`,
}

// MySQLCache is a MySQL implementation of core.ResultCache
type MySQLCache struct {
	*sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	base, err := newSQLCache(db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &MySQLCache{sqlCache: base}, nil
}
