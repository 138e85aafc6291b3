package detection

import (
	"reflect"
	"sync"
	"testing"
)

func TestRecordIfAbsentIsIdempotent(t *testing.T) {
	s := NewStore()

	if !s.RecordIfAbsent("m1", []string{"urgency"}) {
		t.Fatal("expected first record to be new")
	}
	if s.RecordIfAbsent("m1", []string{"suspicious_links"}) {
		t.Fatal("expected second record to be a no-op")
	}
	if s.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.Count())
	}

	rec, ok := s.Get("m1")
	if !ok {
		t.Fatal("expected record for m1")
	}
	if !reflect.DeepEqual(rec.Warnings, []string{"urgency"}) {
		t.Fatalf("record was overwritten: %v", rec.Warnings)
	}
}

func TestRecordIfAbsentIgnoresCleanMessages(t *testing.T) {
	s := NewStore()
	if s.RecordIfAbsent("m1", nil) {
		t.Fatal("expected clean message not to be recorded")
	}
	if s.RecordIfAbsent("", []string{"urgency"}) {
		t.Fatal("expected empty id not to be recorded")
	}
	if s.Has("m1") || s.Count() != 0 {
		t.Fatal("expected empty store")
	}
}

func TestRecordDedupesWarnings(t *testing.T) {
	s := NewStore()
	s.RecordIfAbsent("m1", []string{"a", "b", "a"})
	rec, _ := s.Get("m1")
	if !reflect.DeepEqual(rec.Warnings, []string{"a", "b"}) {
		t.Fatalf("expected ordered set, got %v", rec.Warnings)
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.RecordIfAbsent("m1", []string{"urgency"})

	if !s.Remove("m1") {
		t.Fatal("expected remove of existing record to report true")
	}
	if s.Remove("m1") {
		t.Fatal("expected second remove to be a no-op")
	}
	if s.Remove("never-seen") {
		t.Fatal("expected remove of unknown id to be a no-op")
	}
	if s.Has("m1") || s.Count() != 0 {
		t.Fatal("expected empty store after remove")
	}
}

func TestConcurrentRecordIfAbsentInsertsOnce(t *testing.T) {
	s := NewStore()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.RecordIfAbsent("m1", []string{"urgency"}) {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
	if s.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.Count())
	}
}
