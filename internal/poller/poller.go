package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailpull/internal/archive"
	"github.com/brandon/mailpull/internal/index"
	"github.com/brandon/mailpull/pkg/types"
)

// Mailbox is the read-only view of the mail server the poller needs
type Mailbox interface {
	FetchNewSince(folderName string, lastUID uint32) ([]*types.Message, error)
	FetchSince(folderName string, since time.Time) ([]*types.Message, error)
}

// Poller re-queries one folder at a fixed interval and archives whatever
// arrived since the last tick
type Poller struct {
	folder  string
	mailbox Mailbox
	writer  *archive.Writer
	store   *index.Store
	logger  *logrus.Logger
}

// New creates a new poller
func New(folder string, mailbox Mailbox, writer *archive.Writer, store *index.Store, logger *logrus.Logger) *Poller {
	return &Poller{
		folder:  folder,
		mailbox: mailbox,
		writer:  writer,
		store:   store,
		logger:  logger,
	}
}

// Run polls until the context is cancelled. Errors are logged and the next
// tick proceeds as usual.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	p.logger.WithFields(logrus.Fields{
		"folder":   p.folder,
		"interval": interval.String(),
	}).Info("Starting mailbox poller")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if count, err := p.PollOnce(); err != nil {
			p.logger.WithError(err).Error("Poll failed")
		} else if count > 0 {
			p.logger.WithField("count", count).Info("Archived new messages")
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Stopping mailbox poller")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce fetches messages newer than the last archived UID and archives
// them. Returns the number of newly archived messages.
func (p *Poller) PollOnce() (int, error) {
	lastUID, err := p.store.LastUID(p.folder)
	if err != nil {
		return 0, err
	}

	messages, err := p.mailbox.FetchNewSince(p.folder, lastUID)
	if err != nil {
		return 0, err
	}

	return p.archiveAll(messages), nil
}

// FetchSince archives all messages received at or after the given instant,
// skipping any that are already in the index. Returns the number of newly
// archived messages.
func (p *Poller) FetchSince(since time.Time) (int, error) {
	messages, err := p.mailbox.FetchSince(p.folder, since)
	if err != nil {
		return 0, err
	}

	return p.archiveAll(messages), nil
}

// archiveAll archives each message in turn. A failure on one message is
// logged and does not stop the rest.
func (p *Poller) archiveAll(messages []*types.Message) int {
	archived := 0
	for _, msg := range messages {
		done, err := p.store.IsArchived(msg.FolderPath, msg.UID)
		if err != nil {
			p.logger.WithError(err).WithField("uid", msg.UID).Warn("Failed to check archive index")
			continue
		}
		if done {
			continue
		}

		result, err := p.writer.Archive(msg)
		if err != nil {
			p.logger.WithError(err).WithField("uid", msg.UID).Warn("Failed to archive message")
			continue
		}

		// Dry runs must not advance the index
		if p.writer.DryRun() {
			archived++
			continue
		}

		if err := p.store.MarkArchived(msg, result.BodyPath); err != nil {
			p.logger.WithError(err).WithField("uid", msg.UID).Warn("Failed to record archived message")
			continue
		}
		archived++
	}
	return archived
}
