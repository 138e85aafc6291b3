// Package detection owns the per-message detection state.
package detection

import (
	"sync"
	"time"

	"github.com/mikey/phish-guard/internal/core"
)

// Store maps message ids to detection records. A message id is present
// iff the message currently carries an unresolved warning.
type Store struct {
	mu      sync.RWMutex
	records map[string]*core.DetectionRecord
	now     func() time.Time
}

// NewStore creates an empty detection store
func NewStore() *Store {
	return &Store{
		records: make(map[string]*core.DetectionRecord),
		now:     time.Now,
	}
}

// RecordIfAbsent inserts a record unless one already exists for messageID.
// It reports whether a new record was created; existing records are never overwritten.
func (s *Store) RecordIfAbsent(messageID string, warnings []string) bool {
	if messageID == "" || len(warnings) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[messageID]; ok {
		return false
	}

	s.records[messageID] = &core.DetectionRecord{
		MessageID:  messageID,
		Warnings:   dedupe(warnings),
		DetectedAt: s.now(),
	}
	return true
}

// Remove deletes the record for messageID and reports whether it existed
func (s *Store) Remove(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[messageID]; !ok {
		return false
	}
	delete(s.records, messageID)
	return true
}

// Has reports whether messageID is flagged
func (s *Store) Has(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[messageID]
	return ok
}

// Get returns a copy of the record for messageID
func (s *Store) Get(messageID string) (core.DetectionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[messageID]
	if !ok {
		return core.DetectionRecord{}, false
	}
	out := *rec
	out.Warnings = append([]string(nil), rec.Warnings...)
	return out, true
}

// Count returns the number of live records
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// IDs returns the flagged message ids in no particular order
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// dedupe keeps the first occurrence of each name, preserving order
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
