package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-mbox"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailpull/pkg/types"
)

// Result describes the files produced for one message
type Result struct {
	BodyPath        string
	AttachmentPaths []string
}

// Writer materializes messages into files on disk
type Writer struct {
	attachmentsDir string
	bodiesDir      string
	mboxPath       string
	dryRun         bool
	logger         *logrus.Logger
}

// NewWriter creates a new archive writer. mboxPath may be empty to disable
// the raw mbox archive.
func NewWriter(attachmentsDir, bodiesDir, mboxPath string, logger *logrus.Logger) (*Writer, error) {
	if err := os.MkdirAll(attachmentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}
	if err := os.MkdirAll(bodiesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bodies directory: %w", err)
	}
	if mboxPath != "" {
		if err := os.MkdirAll(filepath.Dir(mboxPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create mbox directory: %w", err)
		}
	}

	return &Writer{
		attachmentsDir: attachmentsDir,
		bodiesDir:      bodiesDir,
		mboxPath:       mboxPath,
		logger:         logger,
	}, nil
}

// SetDryRun makes the writer log what it would write instead of writing
func (w *Writer) SetDryRun(dryRun bool) {
	w.dryRun = dryRun
}

// DryRun reports whether the writer is in dry-run mode
func (w *Writer) DryRun() bool {
	return w.dryRun
}

// Archive writes a message's body, attachments and (optionally) raw content
// to disk. One message produces exactly one body file plus one file per
// named attachment.
func (w *Writer) Archive(msg *types.Message) (*Result, error) {
	result := &Result{}

	bodyPath, err := w.writeBody(msg)
	if err != nil {
		return nil, err
	}
	result.BodyPath = bodyPath

	for _, att := range msg.Attachments {
		path, err := w.writeAttachment(msg, &att)
		if err != nil {
			return nil, err
		}
		result.AttachmentPaths = append(result.AttachmentPaths, path)
	}

	if w.mboxPath != "" && len(msg.Raw) > 0 {
		if err := w.appendMbox(msg); err != nil {
			return nil, err
		}
	}

	w.logger.WithFields(logrus.Fields{
		"uid":         msg.UID,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}).Info("Archived message")

	return result, nil
}

// writeBody writes the message body to the bodies directory. The text part
// is written verbatim; messages without a text part fall back to HTML, then
// to the raw content.
func (w *Writer) writeBody(msg *types.Message) (string, error) {
	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}
	if body == "" {
		body = string(msg.Raw)
	}

	name := fmt.Sprintf("%s_%s.txt", msg.Date.UTC().Format("20060102T150405Z"), sanitizeFilename(msg.Subject))
	path := uniquePath(filepath.Join(w.bodiesDir, name))

	if w.dryRun {
		w.logger.WithField("path", path).Info("Dry run: would write body")
		return path, nil
	}

	if err := w.writeFileAtomic(path, []byte(body)); err != nil {
		return "", fmt.Errorf("failed to write body file: %w", err)
	}
	return path, nil
}

// writeAttachment writes a single attachment to the attachments directory
func (w *Writer) writeAttachment(msg *types.Message, att *types.Attachment) (string, error) {
	name := sanitizeFilename(att.Filename)
	if name == "" {
		name = fmt.Sprintf("attachment-%d", msg.UID)
	}
	path := uniquePath(filepath.Join(w.attachmentsDir, name))

	if w.dryRun {
		w.logger.WithField("path", path).Info("Dry run: would write attachment")
		return path, nil
	}

	if err := w.writeFileAtomic(path, att.Content); err != nil {
		return "", fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
	}
	return path, nil
}

// appendMbox appends the raw message to the mbox archive file
func (w *Writer) appendMbox(msg *types.Message) error {
	if w.dryRun {
		w.logger.WithField("path", w.mboxPath).Info("Dry run: would append to mbox")
		return nil
	}

	file, err := os.OpenFile(w.mboxPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open mbox file: %w", err)
	}
	defer file.Close()

	from := msg.SenderEmail
	if from == "" {
		from = "MAILER-DAEMON"
	}

	mw := mbox.NewWriter(file)
	msgWriter, err := mw.CreateMessage(from, msg.Date)
	if err != nil {
		return fmt.Errorf("failed to create mbox entry: %w", err)
	}
	if _, err := msgWriter.Write(msg.Raw); err != nil {
		return fmt.Errorf("failed to write mbox entry: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish mbox entry: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place
func (w *Writer) writeFileAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return nil
}

// uniquePath returns path if it does not exist yet, otherwise the first
// "name-N.ext" variant that does not exist. Existing files are never
// overwritten.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// sanitizeFilename strips path separators and control characters from a
// name supplied by the mail server
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// skip control characters
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	const maxLen = 120
	out := b.String()
	if len(out) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}
