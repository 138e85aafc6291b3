package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

// dialect holds the statements that differ between SQL backends
type dialect struct {
	name   string
	schema []string
	upsert string
}

// sqlCache implements CacheRepository on top of database/sql. Timestamps are
// stored as unix seconds so expiry checks are identical on every backend.
type sqlCache struct {
	db          *sql.DB
	dialect     dialect
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

func newSQLCache(db *sql.DB, d dialect, logger *zap.Logger, cleanupFreq time.Duration) (*sqlCache, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	c := &sqlCache{
		db:          db,
		dialect:     d,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go c.startCleanupTask()
	}

	return c, nil
}

// Get retrieves the cached assessment for a message fingerprint
func (c *sqlCache) Get(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	var (
		a                              core.Assessment
		analyzedAt, lastSeen, expireAt int64
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT title, details, severity, model_used, analyzed_at, last_seen, expires_at
		FROM phish_cache
		WHERE fingerprint = ? AND expires_at > ?
	`, fingerprint, c.now().Unix()).Scan(&a.Title, &a.Details, &a.Severity, &a.ModelUsed, &analyzedAt, &lastSeen, &expireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	a.AnalyzedAt = time.Unix(analyzedAt, 0)
	return &core.CacheEntry{
		Fingerprint: fingerprint,
		Assessment:  &a,
		LastSeen:    time.Unix(lastSeen, 0),
		ExpiresAt:   time.Unix(expireAt, 0),
	}, nil
}

// Set stores a cache entry
func (c *sqlCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	if entry.Assessment == nil {
		return errors.New("cache entry has no assessment")
	}
	a := entry.Assessment

	_, err := c.db.ExecContext(ctx, c.dialect.upsert,
		entry.Fingerprint, a.Title, a.Details, a.Severity, a.ModelUsed,
		a.AnalyzedAt.Unix(), entry.LastSeen.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *sqlCache) Delete(ctx context.Context, fingerprint string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM phish_cache WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *sqlCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM phish_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries",
			zap.String("backend", c.dialect.name),
			zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *sqlCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (c *sqlCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.String("backend", c.dialect.name), zap.Error(err))
		}
	})
}
