// Package imap exposes an IMAP folder as a polled message source.
package imap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/source"
	"github.com/mikey/phish-guard/internal/adapters/source/mailparse"
	"github.com/mikey/phish-guard/internal/core"
)

// DefaultPollInterval is used when no interval is configured
const DefaultPollInterval = 30 * time.Second

// Source polls one IMAP folder. Message ids are "<mailbox>/<uid>"; the
// \Seen flag appearing on a message counts as the user opening it.
type Source struct {
	source.Notifier

	opts     Options
	interval time.Duration
	logger   *zap.Logger
	dialer   func() (mailbox, error)

	connMu sync.Mutex
	conn   mailbox
	cache  map[imapv2.UID]core.Message

	mu     sync.Mutex
	known  source.Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an IMAP source
func New(opts Options, interval time.Duration, logger *zap.Logger) *Source {
	s := newSource(opts, interval, logger)
	s.dialer = func() (mailbox, error) {
		return dial(opts)
	}
	return s
}

func newSource(opts Options, interval time.Duration, logger *zap.Logger) *Source {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Source{
		opts:     opts,
		interval: interval,
		logger:   logger,
		cache:    make(map[imapv2.UID]core.Message),
		known:    source.Snapshot{},
	}
}

// ListVisibleMessages fetches the folder, downloading only bodies not seen before
func (s *Source) ListVisibleMessages(ctx context.Context) ([]core.Message, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	flags, err := s.flagsLocked(ctx)
	if err != nil {
		return nil, err
	}

	var missing []imapv2.UID
	for uid := range flags {
		if _, ok := s.cache[uid]; !ok {
			missing = append(missing, uid)
		}
	}
	if len(missing) > 0 {
		bodies, err := s.conn.bodies(ctx, missing)
		if err != nil {
			s.dropConnLocked()
			return nil, fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
		}
		for uid, raw := range bodies {
			s.cache[uid] = s.parse(uid, raw)
		}
	}

	uids := make([]imapv2.UID, 0, len(flags))
	for uid := range s.cache {
		if _, ok := flags[uid]; !ok {
			delete(s.cache, uid)
			continue
		}
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	msgs := make([]core.Message, 0, len(uids))
	for _, uid := range uids {
		msgs = append(msgs, s.cache[uid])
	}
	return msgs, nil
}

// Start takes the initial flag snapshot and begins polling
func (s *Source) Start(ctx context.Context) error {
	s.connMu.Lock()
	snapshot, err := s.flagsLocked(ctx)
	s.connMu.Unlock()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.known = s.snapshotOf(snapshot)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Polling IMAP mailbox",
		zap.String("host", s.opts.Host),
		zap.String("mailbox", s.opts.mailbox()),
		zap.Duration("interval", s.interval),
		zap.Int("messages", len(snapshot)))

	go s.poll(ctx, done)
	return nil
}

// Stop ends polling and logs out
func (s *Source) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.close()
	s.conn = nil
	return err
}

func (s *Source) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("IMAP poll failed", zap.Error(err))
			}
		}
	}
}

// Refresh compares the folder against the last snapshot and fires callbacks
func (s *Source) Refresh(ctx context.Context) error {
	s.connMu.Lock()
	flags, err := s.flagsLocked(ctx)
	s.connMu.Unlock()
	if err != nil {
		return err
	}
	current := s.snapshotOf(flags)

	s.mu.Lock()
	diff := source.Compare(s.known, current)
	s.known = current
	s.mu.Unlock()

	s.Fire(diff)
	return nil
}

func (s *Source) snapshotOf(flags map[imapv2.UID]bool) source.Snapshot {
	snap := make(source.Snapshot, len(flags))
	for uid, seen := range flags {
		snap[s.messageID(uid)] = seen
	}
	return snap
}

func (s *Source) flagsLocked(ctx context.Context) (map[imapv2.UID]bool, error) {
	if s.conn == nil {
		conn, err := s.dialer()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
		}
		s.conn = conn
	}

	flags, err := s.conn.flags(ctx)
	if err != nil {
		s.dropConnLocked()
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
	}
	return flags, nil
}

func (s *Source) dropConnLocked() {
	if s.conn != nil {
		_ = s.conn.close()
		s.conn = nil
	}
}

func (s *Source) parse(uid imapv2.UID, raw []byte) core.Message {
	id := s.messageID(uid)
	parsed, err := mailparse.ParseBytes(raw)
	if err != nil {
		s.logger.Debug("Treating unparsable message as plain text", zap.String("message_id", id), zap.Error(err))
		return core.Message{ID: id, Content: string(raw)}
	}
	return parsed.Message(id)
}

func (s *Source) messageID(uid imapv2.UID) string {
	return fmt.Sprintf("%s/%d", s.opts.mailbox(), uid)
}
