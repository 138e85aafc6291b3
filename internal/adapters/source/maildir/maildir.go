// Package maildir exposes a Maildir folder as a live message source.
package maildir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/source"
	"github.com/mikey/phish-guard/internal/adapters/source/mailparse"
	"github.com/mikey/phish-guard/internal/core"
)

const infoSeparator = ":2,"

// Source watches new/ and cur/ of one maildir. The message id is the
// maildir unique name, which survives the new/ to cur/ move and flag changes.
type Source struct {
	source.Notifier

	root   string
	logger *zap.Logger

	mu      sync.Mutex
	known   source.Snapshot
	watcher *fsnotify.Watcher
	done    chan struct{}
}

type entry struct {
	path string
	seen bool
}

// New creates a maildir source rooted at root
func New(root string, logger *zap.Logger) *Source {
	return &Source{
		root:   root,
		logger: logger,
		known:  source.Snapshot{},
	}
}

// ListVisibleMessages parses every message currently in new/ and cur/
func (s *Source) ListVisibleMessages(ctx context.Context) ([]core.Message, error) {
	entries, err := s.list()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	msgs := make([]core.Message, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := s.read(key, entries[key].path)
		if err != nil {
			// delivered and then removed between list and read
			s.logger.Debug("Skipping unreadable message", zap.String("key", key), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Start takes the initial snapshot and begins watching for changes
func (s *Source) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range []string{"new", "cur"} {
		if err := watcher.Add(filepath.Join(s.root, dir)); err != nil {
			watcher.Close()
			return fmt.Errorf("%w: watch %s: %v", core.ErrSourceUnavailable, dir, err)
		}
	}

	snapshot, err := s.list()
	if err != nil {
		watcher.Close()
		return err
	}
	s.mu.Lock()
	s.known = snapshotOf(snapshot)
	s.watcher = watcher
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Watching maildir", zap.String("root", s.root), zap.Int("messages", len(snapshot)))
	go s.watch(ctx, watcher, s.done)
	return nil
}

// Stop ends the watch loop
func (s *Source) Stop() error {
	s.mu.Lock()
	watcher, done := s.watcher, s.done
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}

func (s *Source) watch(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) {
				continue
			}
			if err := s.Refresh(); err != nil {
				s.logger.Warn("Failed to refresh maildir", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Maildir watcher error", zap.Error(err))
		}
	}
}

// Refresh diffs the directory against the last snapshot and fires callbacks:
// new keys report a visible-set change, vanished keys a removal and keys
// that gained the Seen flag an open.
func (s *Source) Refresh() error {
	entries, err := s.list()
	if err != nil {
		return err
	}
	current := snapshotOf(entries)

	s.mu.Lock()
	diff := source.Compare(s.known, current)
	s.known = current
	s.mu.Unlock()

	s.Fire(diff)
	return nil
}

func snapshotOf(entries map[string]entry) source.Snapshot {
	snap := make(source.Snapshot, len(entries))
	for key, e := range entries {
		snap[key] = e.seen
	}
	return snap
}

func (s *Source) list() (map[string]entry, error) {
	entries := make(map[string]entry)
	for _, dir := range []string{"new", "cur"} {
		files, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", core.ErrSourceUnavailable, s.root)
			}
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
				continue
			}
			key, flags := splitName(f.Name())
			entries[key] = entry{
				path: filepath.Join(s.root, dir, f.Name()),
				seen: dir == "cur" && strings.ContainsRune(flags, 'S'),
			}
		}
	}
	return entries, nil
}

func (s *Source) read(key, path string) (core.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Message{}, err
	}
	parsed, err := mailparse.ParseBytes(raw)
	if err != nil {
		s.logger.Debug("Treating unparsable message as plain text", zap.String("key", key), zap.Error(err))
		return core.Message{ID: key, Content: string(raw)}, nil
	}
	return parsed.Message(key), nil
}

// splitName separates the unique name from the info part of a maildir filename
func splitName(name string) (key, flags string) {
	if i := strings.Index(name, infoSeparator); i >= 0 {
		return name[:i], name[i+len(infoSeparator):]
	}
	return name, ""
}
