// Package smtp exposes a local SMTP listener as a message source: every
// delivered message becomes visible until it is evicted or removed.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/source"
	"github.com/mikey/phish-guard/internal/adapters/source/mailparse"
	"github.com/mikey/phish-guard/internal/core"
)

// DefaultMaxMessages bounds the inbox when no limit is configured
const DefaultMaxMessages = 500

// Options configures the listener
type Options struct {
	ListenAddr      string
	Domain          string
	MaxMessages     int
	MaxMessageBytes int64
}

// Source is an in-memory inbox fed by SMTP deliveries
type Source struct {
	source.Notifier

	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	messages []inboxEntry
	server   *smtp.Server
	listener net.Listener
}

type inboxEntry struct {
	msg    core.Message
	opened bool
}

// New creates an SMTP inbox source
func New(opts Options, logger *zap.Logger) *Source {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 30 * 1024 * 1024
	}
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	return &Source{opts: opts, logger: logger}
}

// ListVisibleMessages returns the inbox in arrival order
func (s *Source) ListVisibleMessages(ctx context.Context) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]core.Message, 0, len(s.messages))
	for _, e := range s.messages {
		msgs = append(msgs, e.msg)
	}
	return msgs, nil
}

// Deliver adds a raw message to the inbox. envelopeFrom is used when the
// message carries no From header. Redelivering the same message is a no-op.
func (s *Source) Deliver(raw []byte, envelopeFrom string) (core.Message, error) {
	parsed, err := mailparse.ParseBytes(raw)
	if err != nil {
		return core.Message{}, fmt.Errorf("parse message: %w", err)
	}
	if parsed.Sender == "" {
		parsed.Sender = envelopeFrom
	}
	msg := parsed.Message("")

	s.mu.Lock()
	for _, e := range s.messages {
		if e.msg.ID == msg.ID {
			s.mu.Unlock()
			return msg, nil
		}
	}
	s.messages = append(s.messages, inboxEntry{msg: msg})
	var evicted []string
	for len(s.messages) > s.opts.MaxMessages {
		evicted = append(evicted, s.messages[0].msg.ID)
		s.messages = s.messages[1:]
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Info("Inbox full, evicted oldest messages", zap.Int("evicted", len(evicted)))
	}
	s.Fire(source.Diff{Added: true, Removed: evicted})
	return msg, nil
}

// Remove deletes a message from the inbox
func (s *Source) Remove(id string) bool {
	s.mu.Lock()
	found := false
	for i, e := range s.messages {
		if e.msg.ID == id {
			s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.Fire(source.Diff{Removed: []string{id}})
	}
	return found
}

// MarkOpened records that the user read a message. Only the first open fires.
func (s *Source) MarkOpened(id string) bool {
	s.mu.Lock()
	fire := false
	for i := range s.messages {
		if s.messages[i].msg.ID == id && !s.messages[i].opened {
			s.messages[i].opened = true
			fire = true
			break
		}
	}
	s.mu.Unlock()

	if fire {
		s.Fire(source.Diff{Opened: []string{id}})
	}
	return fire
}

// Start begins accepting deliveries
func (s *Source) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", core.ErrSourceUnavailable, s.opts.ListenAddr, err)
	}

	server := smtp.NewServer(&backend{source: s})
	server.Addr = listener.Addr().String()
	server.Domain = s.opts.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = s.opts.MaxMessageBytes
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true

	s.mu.Lock()
	s.server = server
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("SMTP inbox listening", zap.String("address", server.Addr))

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound listen address once started
func (s *Source) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and open sessions
func (s *Source) Stop() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Close()
}

type backend struct {
	source *Source
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{source: b.source}, nil
}

type session struct {
	source *Source
	sender string
}

func (s *session) Reset() {
	s.sender = ""
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.source.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := s.source.Deliver(raw, s.sender)
	if err != nil {
		s.source.logger.Warn("Rejecting unparsable message", zap.String("sender", s.sender), zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	s.source.logger.Debug("Accepted message",
		zap.String("message_id", msg.ID),
		zap.String("sender", msg.Sender))
	return nil
}

func (s *session) Logout() error {
	return nil
}
