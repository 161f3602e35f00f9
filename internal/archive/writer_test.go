package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-mbox"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailpull/pkg/types"
)

func newTestWriter(t *testing.T, mboxPath string) (*Writer, string, string) {
	t.Helper()

	attachmentsDir := filepath.Join(t.TempDir(), "attachments")
	bodiesDir := filepath.Join(t.TempDir(), "bodies")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	w, err := NewWriter(attachmentsDir, bodiesDir, mboxPath, logger)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	return w, attachmentsDir, bodiesDir
}

func testMessage(uid uint32) *types.Message {
	return &types.Message{
		UID:         uid,
		MessageID:   "<test@example.org>",
		Subject:     "Quarterly report",
		SenderEmail: "sender@example.org",
		Date:        time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
		FolderPath:  "INBOX",
		BodyText:    "Please find the report attached.\n",
		Raw:         []byte("From: sender@example.org\r\n\r\nPlease find the report attached.\r\n"),
	}
}

func TestArchive_AttachmentsMatchByteForByte(t *testing.T) {
	w, attachmentsDir, _ := newTestWriter(t, "")

	msg := testMessage(1)
	msg.Attachments = []types.Attachment{
		{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}},
		{Filename: "notes.txt", ContentType: "text/plain", Content: []byte("line one\nline two\n")},
	}

	result, err := w.Archive(msg)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	if len(result.AttachmentPaths) != 2 {
		t.Fatalf("expected 2 attachment files, got %d", len(result.AttachmentPaths))
	}

	entries, err := os.ReadDir(attachmentsDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files in attachments dir, got %d", len(entries))
	}

	for i, att := range msg.Attachments {
		path := result.AttachmentPaths[i]
		if filepath.Base(path) != att.Filename {
			t.Errorf("attachment %d: name = %q, want %q", i, filepath.Base(path), att.Filename)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", path, err)
		}
		if !bytes.Equal(data, att.Content) {
			t.Errorf("attachment %d: content differs from original", i)
		}
	}
}

func TestArchive_NoAttachmentsProducesOneBodyFile(t *testing.T) {
	w, attachmentsDir, bodiesDir := newTestWriter(t, "")

	msg := testMessage(2)
	result, err := w.Archive(msg)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	bodies, err := os.ReadDir(bodiesDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(bodies) != 1 {
		t.Fatalf("expected exactly 1 body file, got %d", len(bodies))
	}

	attachments, err := os.ReadDir(attachmentsDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(attachments) != 0 {
		t.Fatalf("expected no attachment files, got %d", len(attachments))
	}

	data, err := os.ReadFile(result.BodyPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != msg.BodyText {
		t.Errorf("body file content = %q, want verbatim %q", string(data), msg.BodyText)
	}
}

func TestArchive_DoesNotOverwriteOnNameCollision(t *testing.T) {
	w, attachmentsDir, _ := newTestWriter(t, "")

	first := testMessage(3)
	first.Attachments = []types.Attachment{{Filename: "invoice.pdf", Content: []byte("first")}}
	if _, err := w.Archive(first); err != nil {
		t.Fatalf("Archive(first) error = %v", err)
	}

	second := testMessage(4)
	second.Attachments = []types.Attachment{{Filename: "invoice.pdf", Content: []byte("second")}}
	result, err := w.Archive(second)
	if err != nil {
		t.Fatalf("Archive(second) error = %v", err)
	}

	if got := filepath.Base(result.AttachmentPaths[0]); got != "invoice-1.pdf" {
		t.Errorf("collision name = %q, want %q", got, "invoice-1.pdf")
	}

	original, err := os.ReadFile(filepath.Join(attachmentsDir, "invoice.pdf"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(original) != "first" {
		t.Errorf("original file was overwritten: %q", string(original))
	}
}

func TestArchive_MboxAppend(t *testing.T) {
	mboxPath := filepath.Join(t.TempDir(), "archive.mbox")
	w, _, _ := newTestWriter(t, mboxPath)

	if _, err := w.Archive(testMessage(5)); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := w.Archive(testMessage(6)); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	file, err := os.Open(mboxPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer file.Close()

	reader := mbox.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextMessage() error = %v", err)
		}
		data, err := io.ReadAll(msgReader)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if !bytes.Contains(data, []byte("sender@example.org")) {
			t.Errorf("mbox entry missing sender header: %q", string(data))
		}
		count++
	}
	if count != 2 {
		t.Errorf("mbox contains %d messages, want 2", count)
	}
}

func TestArchive_DryRunWritesNothing(t *testing.T) {
	w, attachmentsDir, bodiesDir := newTestWriter(t, "")
	w.SetDryRun(true)

	msg := testMessage(7)
	msg.Attachments = []types.Attachment{{Filename: "data.bin", Content: []byte{1, 2, 3}}}

	if _, err := w.Archive(msg); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	for _, dir := range []string{attachmentsDir, bodiesDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("dry run wrote %d files in %s", len(entries), dir)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..", ""},
		{"../", ""},
		{".", ""},
		{"inv:oice?.pdf", "inv_oice_.pdf"},
		{"  spaced.txt  ", "spaced.txt"},
		{"bad\x00name", "badname"},
	}

	for _, c := range cases {
		if got := sanitizeFilename(c.in); got != c.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日", 50) // 150 bytes

	got := sanitizeFilename(long)
	if len(got) > 120 {
		t.Errorf("sanitized name is %d bytes, want at most 120", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("sanitized name is not valid UTF-8: %q", got)
	}
}

func TestArchive_ParentDirectoryNameStaysInside(t *testing.T) {
	w, attachmentsDir, _ := newTestWriter(t, "")

	msg := testMessage(9)
	msg.Attachments = []types.Attachment{{Filename: "..", Content: []byte("escape attempt")}}

	result, err := w.Archive(msg)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	path := result.AttachmentPaths[0]
	if filepath.Dir(path) != attachmentsDir {
		t.Fatalf("attachment written to %s, outside %s", path, attachmentsDir)
	}
	if got := filepath.Base(path); got != "attachment-9" {
		t.Errorf("attachment name = %q, want fallback %q", got, "attachment-9")
	}

	// The parent must hold nothing but the attachments dir itself
	entries, err := os.ReadDir(filepath.Dir(attachmentsDir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		t.Errorf("parent of attachments dir gained entries: %v", entries)
	}
}
