package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/scan"
)

const consoleHelp = "Commands: scan | dismiss <message-id> | analyze <message-id> | open <message-id> | count | help | quit"

// engine is the part of the orchestrator the console drives
type engine interface {
	ScanNow(ctx context.Context) (scan.Result, error)
	Dismiss(ctx context.Context, messageID string) (bool, error)
	Count() int
}

// console turns lines typed by the user into engine commands
type console struct {
	engine  engine
	analyze func(ctx context.Context, messageID string)
	status  func(line string)
	logger  *zap.Logger

	// open marks a message read on the source; nil when reads come from
	// the mail client
	open func(messageID string) bool
}

// run reads commands from r until EOF, "quit" or ctx is done
func (c *console) run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			if c.exec(ctx, line) {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the console should exit
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "scan":
		res, err := c.engine.ScanNow(ctx)
		if err != nil {
			// already shown on the renderer
			c.logger.Debug("Manual scan failed", zap.Error(err))
			return false
		}
		c.status(res.Status())

	case "dismiss":
		if len(args) != 1 {
			c.status("usage: dismiss <message-id>")
			return false
		}
		existed, err := c.engine.Dismiss(ctx, args[0])
		if err != nil {
			c.status(fmt.Sprintf("Could not dismiss %s: %v", args[0], err))
			return false
		}
		if !existed {
			c.status(fmt.Sprintf("No warning on %s", args[0]))
		}

	case "analyze":
		if len(args) != 1 {
			c.status("usage: analyze <message-id>")
			return false
		}
		c.analyze(ctx, args[0])

	case "open":
		if len(args) != 1 {
			c.status("usage: open <message-id>")
			return false
		}
		if c.open == nil {
			c.status("Open the message in your mail client to mark it read")
			return false
		}
		if !c.open(args[0]) {
			c.status(fmt.Sprintf("No unread message %s", args[0]))
		}

	case "count":
		c.status(fmt.Sprintf("Phishing emails: %d", c.engine.Count()))

	case "help", "?":
		c.status(consoleHelp)

	case "quit", "exit":
		return true

	default:
		c.status(fmt.Sprintf("Unknown command %q. %s", cmd, consoleHelp))
	}
	return false
}
