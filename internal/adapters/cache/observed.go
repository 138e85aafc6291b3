package cache

import (
	"context"

	"github.com/mikey/phish-guard/internal/core"
)

// Observed reports every lookup on the wrapped repository as a hit or miss
type Observed struct {
	core.CacheRepository
	observe func(hit bool)
}

// NewObserved wraps repo so each Get calls observe
func NewObserved(repo core.CacheRepository, observe func(hit bool)) *Observed {
	return &Observed{CacheRepository: repo, observe: observe}
}

// Get implements core.CacheRepository
func (o *Observed) Get(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	entry, err := o.CacheRepository.Get(ctx, fingerprint)
	o.observe(err == nil)
	return entry, err
}

// Stop stops the wrapped repository when it has background work
func (o *Observed) Stop() {
	if stopper, ok := o.CacheRepository.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
