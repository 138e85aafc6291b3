package smtp

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

func rawMail(from, id, body string) []byte {
	return []byte("From: " + from + "\r\nMessage-Id: <" + id + ">\r\nSubject: hi\r\n\r\n" + body + "\r\n")
}

func TestDeliverAndList(t *testing.T) {
	s := New(Options{}, zap.NewNop())
	changed := 0
	s.OnVisibleSetChanged(func() { changed++ })

	if _, err := s.Deliver(rawMail("security@bank.test", "a@x", "verify your account"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Deliver(rawMail("security@bank.test", "a@x", "verify your account"), ""); err != nil {
		t.Fatal(err)
	}

	msgs, _ := s.ListVisibleMessages(context.Background())
	if len(msgs) != 1 || msgs[0].ID != "a@x" {
		t.Fatalf("unexpected inbox %+v", msgs)
	}
	if changed != 1 {
		t.Fatalf("redelivery must not signal a change, got %d", changed)
	}
}

func TestDeliverUsesEnvelopeSender(t *testing.T) {
	s := New(Options{}, zap.NewNop())
	msg, err := s.Deliver([]byte("Subject: x\r\n\r\nbody\r\n"), "bounce@example.test")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Sender != "bounce@example.test" {
		t.Fatalf("Sender = %q", msg.Sender)
	}
	if !strings.HasPrefix(msg.ID, "sha256:") {
		t.Fatalf("expected synthetic id, got %q", msg.ID)
	}
}

func TestEvictionFiresRemoval(t *testing.T) {
	s := New(Options{MaxMessages: 2}, zap.NewNop())
	var removed []string
	s.OnMessageRemoved(func(id string) { removed = append(removed, id) })

	for _, id := range []string{"1@x", "2@x", "3@x"} {
		if _, err := s.Deliver(rawMail("a@b.test", id, id), ""); err != nil {
			t.Fatal(err)
		}
	}

	msgs, _ := s.ListVisibleMessages(context.Background())
	if len(msgs) != 2 || msgs[0].ID != "2@x" {
		t.Fatalf("unexpected inbox %+v", msgs)
	}
	if len(removed) != 1 || removed[0] != "1@x" {
		t.Fatalf("expected oldest evicted, got %v", removed)
	}
}

func TestRemoveAndOpen(t *testing.T) {
	s := New(Options{}, zap.NewNop())
	var removed, opened []string
	s.OnMessageRemoved(func(id string) { removed = append(removed, id) })
	s.OnMessageOpened(func(id string) { opened = append(opened, id) })

	s.Deliver(rawMail("a@b.test", "1@x", "x"), "")

	if !s.MarkOpened("1@x") || s.MarkOpened("1@x") {
		t.Fatal("only the first open should fire")
	}
	if !s.Remove("1@x") || s.Remove("1@x") {
		t.Fatal("only the first remove should succeed")
	}
	if len(opened) != 1 || len(removed) != 1 {
		t.Fatalf("opened=%v removed=%v", opened, removed)
	}
}

func TestSMTPDelivery(t *testing.T) {
	s := New(Options{ListenAddr: "127.0.0.1:0"}, zap.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("tcp", s.Addr(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		t.Fatal(err)
	}
	if err := c.Mail("security@bank.test", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Rcpt("user@example.test", nil); err != nil {
		t.Fatal(err)
	}
	wc, err := c.Data()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wc.Write(rawMail("security@bank.test", "smtp@x", "click here: bit.ly/xyz")); err != nil {
		t.Fatal(err)
	}
	if err := wc.Close(); err != nil {
		t.Fatal(err)
	}
	c.Quit()

	msgs, _ := s.ListVisibleMessages(context.Background())
	if len(msgs) != 1 || msgs[0].ID != "smtp@x" {
		t.Fatalf("unexpected inbox %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "bit.ly/xyz") {
		t.Fatalf("Content = %q", msgs[0].Content)
	}
}
