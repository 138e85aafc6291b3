// Package mailparse turns raw RFC 5322 messages into engine messages.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	"github.com/mikey/phish-guard/internal/core"
)

// Parsed is the subset of a message the engine cares about
type Parsed struct {
	MessageID string
	Sender    string
	Subject   string
	Date      time.Time
	Text      string
	// Seen is set from an mbox style Status header carrying the R flag
	Seen bool
}

// Parse reads a raw message. Undecodable parts are skipped; only a broken
// header block is an error.
func Parse(r io.Reader) (*Parsed, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message header: %w", err)
	}
	defer mr.Close()

	p := &Parsed{}
	p.MessageID, _ = mr.Header.MessageID()
	p.Subject, _ = mr.Header.Subject()
	p.Date, _ = mr.Header.Date()
	p.Seen = strings.ContainsRune(mr.Header.Get("Status"), 'R')
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		p.Sender = from[0].Address
	} else {
		p.Sender = strings.TrimSpace(mr.Header.Get("From"))
	}

	var plain, rich strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// keep whatever text was already collected
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case mediaType == "" || mediaType == "text/plain":
			appendPart(&plain, string(body))
		case mediaType == "text/html":
			appendPart(&rich, HTMLToText(body))
		}
	}

	if plain.Len() > 0 {
		p.Text = plain.String()
	} else {
		p.Text = rich.String()
	}
	return p, nil
}

// ParseBytes is Parse over an in-memory message
func ParseBytes(raw []byte) (*Parsed, error) {
	return Parse(bytes.NewReader(raw))
}

// Message builds the engine view. id wins over the Message-Id header; with
// neither, the id is derived from sender and content.
func (p *Parsed) Message(id string) core.Message {
	content := p.Text
	if p.Subject != "" {
		content = p.Subject + "\n\n" + p.Text
	}

	if id == "" {
		id = p.MessageID
	}
	if id == "" {
		id = core.SyntheticID(p.Sender, content)
	}

	return core.Message{ID: id, Content: content, Sender: p.Sender}
}

// HTMLToText drops markup, scripts and styles and keeps visible text and
// link targets, so link heuristics still see shortened URLs.
func HTMLToText(raw []byte) string {
	var b strings.Builder
	z := html.NewTokenizer(bytes.NewReader(raw))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			switch tag {
			case "script", "style":
				skip++
			case "br", "p", "div", "tr", "li":
				b.WriteByte('\n')
			case "a":
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" && len(val) > 0 {
						b.WriteString(" ")
						b.Write(val)
						b.WriteString(" ")
					}
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func appendPart(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(text)
}
