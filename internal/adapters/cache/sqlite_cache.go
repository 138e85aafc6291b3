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
	schema: []string{`
		CREATE TABLE IF NOT EXISTS phish_cache (
			fingerprint TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			details TEXT NOT NULL,
			severity TEXT NOT NULL,
			model_used TEXT NOT NULL,
			analyzed_at INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_phish_cache_expires_at ON phish_cache(expires_at)`,
	},
	upsert: `
		INSERT OR REPLACE INTO phish_cache
			(fingerprint, title, details, severity, model_used, analyzed_at, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
}

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	*sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	c, err := newSQLCache(db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &SQLiteCache{sqlCache: c}, nil
}
