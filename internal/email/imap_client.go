package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailpull/internal/config"
	"github.com/brandon/mailpull/pkg/types"
)

// IMAPClient wraps an IMAP client connection
type IMAPClient struct {
	config    *config.Config
	client    *client.Client
	logger    *logrus.Logger
	connected bool
}

// NewIMAPClient creates a new IMAP client (does not connect immediately)
func NewIMAPClient(cfg *config.Config) *IMAPClient {
	return &IMAPClient{
		config: cfg,
		logger: logrus.New(),
	}
}

// Connect establishes a connection to the IMAP server
func (c *IMAPClient) Connect() error {
	if c.connected && c.client != nil {
		return nil
	}

	addr := c.config.Addr()

	var cl *client.Client
	var err error
	if c.config.UseTLS {
		cl, err = client.DialTLS(addr, &tls.Config{
			ServerName: c.config.IMAPHost,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		// Plain connection, used for local test servers
		cl, err = client.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	c.client = cl

	if err := c.client.Login(c.config.IMAPUsername, c.config.IMAPPassword); err != nil {
		c.logger.WithError(err).Error("Failed to login to IMAP server")
		c.client.Logout() //nolint:errcheck
		c.client = nil
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	c.connected = true
	c.logger.WithField("server", addr).Info("Connected to IMAP server")
	return nil
}

// Close closes the IMAP connection
func (c *IMAPClient) Close() error {
	if c.client != nil {
		if err := c.client.Logout(); err != nil {
			return err
		}
		c.client = nil
		c.connected = false
	}
	return nil
}

// ListFolders lists all mailboxes/folders
func (c *IMAPClient) ListFolders() ([]types.Folder, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.List("", "*", mailboxes)
	}()

	var folders []types.Folder
	for m := range mailboxes {
		folders = append(folders, types.Folder{
			Name: m.Name,
			Path: m.Name,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// FolderStatus selects a folder and returns its status (message count, UIDNEXT)
func (c *IMAPClient) FolderStatus(folderName string) (*imap.MailboxStatus, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	mbox, err := c.client.Select(folderName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}

	return mbox, nil
}

// FetchSince returns all messages in a folder with a received time at or
// after the given instant. The server-side SINCE search is date-granular, so
// results are filtered again client-side after normalizing to UTC.
func (c *IMAPClient) FetchSince(folderName string, since time.Time) ([]*types.Message, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	if _, err := c.client.Select(folderName, true); err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since.UTC().Truncate(24 * time.Hour)

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search folder: %w", err)
	}
	if len(uids) == 0 {
		return []*types.Message{}, nil
	}

	messages, err := c.fetchUIDs(folderName, uids)
	if err != nil {
		return nil, err
	}

	// Drop same-day messages that still predate the cutoff
	filtered := messages[:0]
	for _, msg := range messages {
		if !msg.Date.UTC().Before(since.UTC()) {
			filtered = append(filtered, msg)
		}
	}
	return filtered, nil
}

// FetchNewSince returns all messages in a folder with a UID strictly greater
// than lastUID
func (c *IMAPClient) FetchNewSince(folderName string, lastUID uint32) ([]*types.Message, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	if _, err := c.client.Select(folderName, true); err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(lastUID+1, 0)

	criteria := imap.NewSearchCriteria()
	criteria.Uid = seqSet

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search folder: %w", err)
	}

	// Some servers interpret an open UID range loosely and return the last
	// existing message even when its UID is below the range start
	fresh := uids[:0]
	for _, uid := range uids {
		if uid > lastUID {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return []*types.Message{}, nil
	}

	return c.fetchUIDs(folderName, fresh)
}

// fetchUIDs fetches full messages for the given UIDs from the selected folder
func (c *IMAPClient) fetchUIDs(folderName string, uids []uint32) ([]*types.Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchInternalDate, imap.FetchUid, imap.FetchRFC822}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var result []*types.Message
	for msg := range messages {
		result = append(result, c.parseMessage(msg, folderName))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return result, nil
}

// parseMessage parses an IMAP message into our Message type
func (c *IMAPClient) parseMessage(msg *imap.Message, folderName string) *types.Message {
	message := &types.Message{
		UID:        msg.Uid,
		FolderPath: folderName,
		Recipients: []string{},
		Flags:      []string{},
	}

	if msg.Envelope != nil {
		message.MessageID = msg.Envelope.MessageId
		message.Subject = msg.Envelope.Subject

		if len(msg.Envelope.From) > 0 {
			addr := msg.Envelope.From[0]
			message.SenderName = addr.PersonalName
			message.SenderEmail = addr.Address()
		}

		for _, to := range msg.Envelope.To {
			message.Recipients = append(message.Recipients, to.Address())
		}
		for _, cc := range msg.Envelope.Cc {
			message.Recipients = append(message.Recipients, cc.Address())
		}
	}

	// The received (internal) date drives since-filters and archive naming;
	// the Date header is sender-controlled and may predate delivery
	message.Date = msg.InternalDate
	if message.Date.IsZero() && msg.Envelope != nil {
		message.Date = msg.Envelope.Date
	}

	message.Flags = append(message.Flags, msg.Flags...)

	raw := c.readRawBody(msg)
	if len(raw) == 0 {
		c.logger.WithField("uid", msg.Uid).Error("No body content found")
		return message
	}
	message.Raw = raw

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		// Fallback: treat the whole literal as plain text
		c.logger.WithError(err).WithField("uid", msg.Uid).Debug("Failed to parse MIME, using raw body")
		message.BodyText = string(raw)
		return message
	}

	message.BodyText = env.Text
	message.BodyHTML = env.HTML

	for _, part := range env.Attachments {
		message.Attachments = append(message.Attachments, types.Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}

	return message
}

// readRawBody extracts the RFC822 literal from a fetched message
func (c *IMAPClient) readRawBody(msg *imap.Message) []byte {
	if msg.Body == nil {
		return nil
	}

	if literal, ok := msg.Body[nil]; ok {
		return c.readLiteralToBytes(literal)
	}

	emptySection := &imap.BodySectionName{}
	if literal, ok := msg.Body[emptySection]; ok {
		return c.readLiteralToBytes(literal)
	}

	for _, literal := range msg.Body {
		if body := c.readLiteralToBytes(literal); len(body) > 0 {
			return body
		}
	}
	return nil
}

// readLiteralToBytes reads content from an IMAP literal and returns bytes
func (c *IMAPClient) readLiteralToBytes(literal imap.Literal) []byte {
	bodyBytes, err := io.ReadAll(literal)
	if err != nil {
		c.logger.WithError(err).Error("Error reading literal")
	}
	return bodyBytes
}

// SetLogger sets the logger for the client
func (c *IMAPClient) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Append uploads a raw message into a folder. Used by tests and the
// occasional manual import.
func (c *IMAPClient) Append(folderName string, date time.Time, raw []byte) error {
	if err := c.Connect(); err != nil {
		return err
	}

	if err := c.client.Append(folderName, nil, date, bytes.NewBuffer(raw)); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}
