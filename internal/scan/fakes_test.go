package scan

import (
	"context"
	"sync"

	"github.com/mikey/phish-guard/internal/core"
)

type fakeSource struct {
	mu       sync.Mutex
	messages []core.Message
	err      error
	changed  []func()
	removed  []func(string)
	opened   []func(string)
}

func (s *fakeSource) ListVisibleMessages(ctx context.Context) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]core.Message(nil), s.messages...), nil
}

func (s *fakeSource) OnVisibleSetChanged(fn func()) { s.changed = append(s.changed, fn) }

func (s *fakeSource) OnMessageRemoved(fn func(string)) { s.removed = append(s.removed, fn) }

func (s *fakeSource) OnMessageOpened(fn func(string)) { s.opened = append(s.opened, fn) }

func (s *fakeSource) add(msg core.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	for _, fn := range s.changed {
		fn()
	}
}

func (s *fakeSource) drop(id string) {
	s.mu.Lock()
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	s.mu.Unlock()
	for _, fn := range s.removed {
		fn(id)
	}
}

func (s *fakeSource) open(id string) {
	for _, fn := range s.opened {
		fn(id)
	}
}

type fakeRenderer struct {
	mu        sync.Mutex
	shown     map[string][]core.Warning
	retracted []string
	counts    []int
	errors    []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{shown: map[string][]core.Warning{}}
}

func (r *fakeRenderer) ShowWarning(id string, warnings []core.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown[id] = warnings
}

func (r *fakeRenderer) RetractWarning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shown, id)
	r.retracted = append(r.retracted, id)
}

func (r *fakeRenderer) UpdateCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, n)
}

func (r *fakeRenderer) ShowAnalysisResult(core.DisplayPayload) {}

func (r *fakeRenderer) ShowError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *fakeRenderer) snapshot() (shown int, retracted []string, counts []int, errs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown), append([]string(nil), r.retracted...), append([]int(nil), r.counts...), append([]string(nil), r.errors...)
}
