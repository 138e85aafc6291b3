package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

func testEntry(fingerprint string, expires time.Time) *core.CacheEntry {
	return &core.CacheEntry{
		Fingerprint: fingerprint,
		Assessment: &core.Assessment{
			Title:      "Credential phishing",
			Details:    "Asks for a password",
			Severity:   core.SeverityHigh,
			ModelUsed:  "test-model",
			AnalyzedAt: time.Unix(1700000000, 0),
		},
		LastSeen:  time.Unix(1700000000, 0),
		ExpiresAt: expires,
	}
}

func exerciseRepository(t *testing.T, repo core.CacheRepository, now time.Time) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := repo.Set(ctx, testEntry("fp1", now.Add(time.Hour))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := repo.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Assessment.Severity != core.SeverityHigh || got.Assessment.ModelUsed != "test-model" {
		t.Fatalf("unexpected entry %+v", got.Assessment)
	}

	// overwrite
	updated := testEntry("fp1", now.Add(time.Hour))
	updated.Assessment.Severity = core.SeverityLow
	if err := repo.Set(ctx, updated); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _ = repo.Get(ctx, "fp1")
	if got.Assessment.Severity != core.SeverityLow {
		t.Fatalf("expected overwrite, got %q", got.Assessment.Severity)
	}

	if err := repo.Set(ctx, testEntry("stale", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := repo.Get(ctx, "stale"); err == nil {
		t.Fatal("expected expired entry to miss")
	}
	if err := repo.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if err := repo.Delete(ctx, "fp1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "fp1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete error = %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()

	exerciseRepository(t, c, time.Now())
	if c.Len() != 0 {
		t.Fatalf("expected cleanup to drop the stale entry, %d left", c.Len())
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	entry := testEntry("fp", time.Now().Add(time.Hour))
	_ = c.Set(ctx, entry)
	entry.ExpiresAt = time.Now().Add(-time.Hour)

	if _, err := c.Get(ctx, "fp"); err != nil {
		t.Fatalf("stored entry changed with caller's copy: %v", err)
	}
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	defer c.Stop()

	exerciseRepository(t, c, time.Now())
}

func TestObserved(t *testing.T) {
	var hits, misses int
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	o := NewObserved(c, func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	ctx := context.Background()
	_, _ = o.Get(ctx, "fp")
	_ = o.Set(ctx, testEntry("fp", time.Now().Add(time.Hour)))
	_, _ = o.Get(ctx, "fp")

	if hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}
