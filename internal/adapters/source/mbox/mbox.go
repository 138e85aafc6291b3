// Package mbox exposes an mbox file as a message source that reloads when
// the file changes.
package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/source"
	"github.com/mikey/phish-guard/internal/adapters/source/mailparse"
	"github.com/mikey/phish-guard/internal/core"
)

// Source reads one mbox file. Ids come from Message-Id headers, falling
// back to a hash of sender and content.
type Source struct {
	source.Notifier

	path   string
	logger *zap.Logger

	mu      sync.Mutex
	known   source.Snapshot
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates an mbox source for path
func New(path string, logger *zap.Logger) *Source {
	return &Source{
		path:   path,
		logger: logger,
		known:  source.Snapshot{},
	}
}

// ListVisibleMessages parses the whole file
func (s *Source) ListVisibleMessages(ctx context.Context) ([]core.Message, error) {
	msgs, _, err := s.read(ctx)
	return msgs, err
}

func (s *Source) read(ctx context.Context) ([]core.Message, source.Snapshot, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", core.ErrSourceUnavailable, s.path)
		}
		return nil, nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	var msgs []core.Message
	snap := source.Snapshot{}

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, nil, fmt.Errorf("message %d read: %w", idx, err)
		}

		parsed, err := mailparse.ParseBytes(raw)
		var msg core.Message
		if err != nil {
			s.logger.Debug("Treating unparsable message as plain text", zap.Int("index", idx), zap.Error(err))
			msg = core.Message{ID: core.SyntheticID("", string(raw)), Content: string(raw)}
		} else {
			msg = parsed.Message("")
		}
		if _, dup := snap[msg.ID]; dup {
			continue
		}
		snap[msg.ID] = parsed != nil && parsed.Seen
		msgs = append(msgs, msg)
	}
	return msgs, snap, nil
}

// Start takes the initial snapshot and watches the file's directory, since
// mail clients often rewrite mbox files by rename.
func (s *Source) Start(ctx context.Context) error {
	_, snap, err := s.read(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: watch %s: %v", core.ErrSourceUnavailable, s.path, err)
	}

	s.mu.Lock()
	s.known = snap
	s.watcher = watcher
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Watching mbox", zap.String("path", s.path), zap.Int("messages", len(snap)))
	go s.watch(ctx, watcher, done)
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
	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || ev.Op == fsnotify.Chmod {
				continue
			}
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("Failed to reload mbox", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Mbox watcher error", zap.Error(err))
		}
	}
}

// Refresh rereads the file and fires callbacks for what changed. A file
// that disappeared leaves the snapshot untouched.
func (s *Source) Refresh(ctx context.Context) error {
	_, current, err := s.read(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	diff := source.Compare(s.known, current)
	s.known = current
	s.mu.Unlock()

	if !diff.Empty() {
		s.logger.Debug("Mbox changed",
			zap.Bool("added", diff.Added),
			zap.Int("removed", len(diff.Removed)),
			zap.Int("opened", len(diff.Opened)))
	}
	s.Fire(diff)
	return nil
}
