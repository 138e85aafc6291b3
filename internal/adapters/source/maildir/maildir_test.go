package maildir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

const phishMail = "From: security@bank.test\r\nSubject: URGENT\r\n\r\nClick here: bit.ly/xyz\r\n"

func newMaildir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"new", "cur", "tmp"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func deliver(t *testing.T, root, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(root, dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type recorder struct {
	mu      sync.Mutex
	changed int
	removed []string
	opened  []string
}

func (r *recorder) attach(s *Source) {
	s.OnVisibleSetChanged(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changed++
	})
	s.OnMessageRemoved(func(id string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.removed = append(r.removed, id)
	})
	s.OnMessageOpened(func(id string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.opened = append(r.opened, id)
	})
}

func TestListVisibleMessages(t *testing.T) {
	root := newMaildir(t)
	deliver(t, root, "new", "1700000000.a.host", phishMail)
	deliver(t, root, "cur", "1700000001.b.host:2,S", "From: friend@example.test\r\n\r\nlunch?\r\n")
	deliver(t, root, "tmp", "1700000002.c.host", phishMail)

	s := New(root, zap.NewNop())
	msgs, err := s.ListVisibleMessages(context.Background())
	if err != nil {
		t.Fatalf("ListVisibleMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 visible messages, got %d", len(msgs))
	}
	if msgs[0].ID != "1700000000.a.host" || msgs[0].Sender != "security@bank.test" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].ID != "1700000001.b.host" {
		t.Fatalf("flags must not be part of the id, got %q", msgs[1].ID)
	}
}

func TestListMissingMaildir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	_, err := s.ListVisibleMessages(context.Background())
	if !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestRefreshReportsTransitions(t *testing.T) {
	root := newMaildir(t)
	first := deliver(t, root, "new", "k1", phishMail)

	s := New(root, zap.NewNop())
	r := &recorder{}
	r.attach(s)
	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	if r.changed != 1 {
		t.Fatalf("expected one change for the first delivery, got %d", r.changed)
	}

	// reading the message moves it to cur/ with the Seen flag
	if err := os.Rename(first, filepath.Join(root, "cur", "k1:2,S")); err != nil {
		t.Fatal(err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	if len(r.opened) != 1 || r.opened[0] != "k1" {
		t.Fatalf("expected k1 opened, got %v", r.opened)
	}
	if r.changed != 1 || len(r.removed) != 0 {
		t.Fatalf("move must not look like add or remove: changed=%d removed=%v", r.changed, r.removed)
	}

	if err := os.Remove(filepath.Join(root, "cur", "k1:2,S")); err != nil {
		t.Fatal(err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	if len(r.removed) != 1 || r.removed[0] != "k1" {
		t.Fatalf("expected k1 removed, got %v", r.removed)
	}
}

func TestWatchFiresOnDelivery(t *testing.T) {
	root := newMaildir(t)
	s := New(root, zap.NewNop())
	r := &recorder{}
	r.attach(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deliver(t, root, "new", "k2", phishMail)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := r.changed
		r.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a visible-set change after delivery")
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, key, flags string
	}{
		{"abc", "abc", ""},
		{"abc:2,FS", "abc", "FS"},
		{"abc:2,", "abc", ""},
	}
	for _, tt := range tests {
		key, flags := splitName(tt.name)
		if key != tt.key || flags != tt.flags {
			t.Errorf("splitName(%q) = %q, %q", tt.name, key, flags)
		}
	}
}
