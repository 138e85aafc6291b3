package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Options configures the IMAP connection
type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
}

func (o Options) mailbox() string {
	if o.Mailbox == "" {
		return "INBOX"
	}
	return o.Mailbox
}

// mailbox is the narrow view of a selected IMAP folder the source needs
type mailbox interface {
	// flags returns every UID in the folder with its \Seen state
	flags(ctx context.Context) (map[imapv2.UID]bool, error)
	// bodies fetches the raw messages for uids without setting \Seen
	bodies(ctx context.Context, uids []imapv2.UID) (map[imapv2.UID][]byte, error)
	close() error
}

type clientMailbox struct {
	client *imapclient.Client
}

func dial(opts Options) (*clientMailbox, error) {
	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	options := &imapclient.Options{}

	var (
		client *imapclient.Client
		err    error
	)
	if opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         opts.Host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	// read-only so fetching never marks anything as read
	if _, err := client.Select(opts.mailbox(), &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("select %s: %w", opts.mailbox(), err)
	}

	return &clientMailbox{client: client}, nil
}

func (m *clientMailbox) flags(ctx context.Context) (map[imapv2.UID]bool, error) {
	search, err := m.client.UIDSearch(&imapv2.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	uids := search.AllUIDs()
	out := make(map[imapv2.UID]bool, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	msgs, err := m.client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		UID:   true,
		Flags: true,
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch flags: %w", err)
	}
	for _, msg := range msgs {
		seen := false
		for _, f := range msg.Flags {
			if f == imapv2.FlagSeen {
				seen = true
				break
			}
		}
		out[msg.UID] = seen
	}
	return out, nil
}

func (m *clientMailbox) bodies(ctx context.Context, uids []imapv2.UID) (map[imapv2.UID][]byte, error) {
	out := make(map[imapv2.UID][]byte, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	msgs, err := m.client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch bodies: %w", err)
	}
	for _, msg := range msgs {
		out[msg.UID] = msg.FindBodySection(section)
	}
	return out, nil
}

func (m *clientMailbox) close() error {
	if err := m.client.Logout().Wait(); err != nil {
		_ = m.client.Close()
		return err
	}
	return m.client.Close()
}
