package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/source/imap"
	"github.com/mikey/phish-guard/internal/adapters/source/maildir"
	"github.com/mikey/phish-guard/internal/adapters/source/mbox"
	"github.com/mikey/phish-guard/internal/adapters/source/smtp"
	"github.com/mikey/phish-guard/internal/config"
	"github.com/mikey/phish-guard/internal/core"
)

// Source is a message source with a background watch loop
type Source interface {
	core.MessageSource
	core.SourceWatcher
}

// SourceFactory creates the configured message source
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSource creates a message source based on source.type
func (f *SourceFactory) CreateSource() (Source, error) {
	srcCfg, err := f.cfg.GetSource()
	if err != nil {
		return nil, fmt.Errorf("invalid source configuration: %w", err)
	}

	logger := f.logger.With(zap.String("source", srcCfg.Type))
	switch srcCfg.Type {
	case "maildir":
		return maildir.New(srcCfg.MaildirPath, logger), nil
	case "mbox":
		return mbox.New(srcCfg.MboxPath, logger), nil
	case "imap":
		return imap.New(imap.Options{
			Host:               srcCfg.IMAP.Host,
			Port:               srcCfg.IMAP.Port,
			Username:           srcCfg.IMAP.Username,
			Password:           srcCfg.IMAP.Password,
			UseTLS:             srcCfg.IMAP.UseTLS,
			InsecureSkipVerify: srcCfg.IMAP.InsecureSkipVerify,
			Mailbox:            srcCfg.IMAP.Mailbox,
		}, srcCfg.IMAP.PollInterval, logger), nil
	case "smtp":
		return smtp.New(smtp.Options{
			ListenAddr:      srcCfg.SMTP.ListenAddr,
			Domain:          srcCfg.SMTP.Domain,
			MaxMessages:     srcCfg.SMTP.MaxMessages,
			MaxMessageBytes: srcCfg.SMTP.MaxMessageBytes,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", srcCfg.Type)
	}
}
