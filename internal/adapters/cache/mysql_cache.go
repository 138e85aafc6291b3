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
	schema: []string{`
		CREATE TABLE IF NOT EXISTS phish_cache (
			fingerprint VARCHAR(80) PRIMARY KEY,
			title VARCHAR(512) NOT NULL,
			details TEXT NOT NULL,
			severity VARCHAR(16) NOT NULL,
			model_used VARCHAR(255) NOT NULL,
			analyzed_at BIGINT NOT NULL,
			last_seen BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_phish_cache_expires_at (expires_at)
		)`,
	},
	upsert: `
		INSERT INTO phish_cache
			(fingerprint, title, details, severity, model_used, analyzed_at, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title),
			details = VALUES(details),
			severity = VALUES(severity),
			model_used = VALUES(model_used),
			analyzed_at = VALUES(analyzed_at),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)`,
}

// MySQLCache is a MySQL implementation of the CacheRepository interface
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

	c, err := newSQLCache(db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &MySQLCache{sqlCache: c}, nil
}
