package index

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailpull/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.db"), logger)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	return NewStore(idx, logger)
}

func indexedMessage(uid uint32, date time.Time) *types.Message {
	return &types.Message{
		UID:         uid,
		MessageID:   "<msg@example.org>",
		Subject:     "hello",
		SenderEmail: "alice@example.org",
		Date:        date,
		FolderPath:  "INBOX",
	}
}

func TestStore_MarkAndCheckArchived(t *testing.T) {
	store := newTestStore(t)

	archived, err := store.IsArchived("INBOX", 42)
	if err != nil {
		t.Fatalf("IsArchived() error = %v", err)
	}
	if archived {
		t.Fatal("message reported archived before MarkArchived")
	}

	msg := indexedMessage(42, time.Now().UTC())
	if err := store.MarkArchived(msg, "/tmp/body.txt"); err != nil {
		t.Fatalf("MarkArchived() error = %v", err)
	}

	archived, err = store.IsArchived("INBOX", 42)
	if err != nil {
		t.Fatalf("IsArchived() error = %v", err)
	}
	if !archived {
		t.Fatal("message not reported archived after MarkArchived")
	}

	// Same UID in another folder is a different message
	archived, err = store.IsArchived("Work", 42)
	if err != nil {
		t.Fatalf("IsArchived() error = %v", err)
	}
	if archived {
		t.Fatal("archive state leaked across folders")
	}
}

func TestStore_MarkArchivedIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	msg := indexedMessage(7, time.Now().UTC())
	if err := store.MarkArchived(msg, "/tmp/a.txt"); err != nil {
		t.Fatalf("MarkArchived() error = %v", err)
	}
	if err := store.MarkArchived(msg, "/tmp/b.txt"); err != nil {
		t.Fatalf("MarkArchived() again error = %v", err)
	}

	count, err := store.Count("INBOX")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestStore_LastUID(t *testing.T) {
	store := newTestStore(t)

	uid, err := store.LastUID("INBOX")
	if err != nil {
		t.Fatalf("LastUID() error = %v", err)
	}
	if uid != 0 {
		t.Errorf("LastUID() on empty index = %d, want 0", uid)
	}

	now := time.Now().UTC()
	for _, u := range []uint32{3, 9, 5} {
		if err := store.MarkArchived(indexedMessage(u, now), "/tmp/body.txt"); err != nil {
			t.Fatalf("MarkArchived(%d) error = %v", u, err)
		}
	}

	uid, err = store.LastUID("INBOX")
	if err != nil {
		t.Fatalf("LastUID() error = %v", err)
	}
	if uid != 9 {
		t.Errorf("LastUID() = %d, want 9", uid)
	}
}

func TestStore_SearchSinceDate(t *testing.T) {
	store := newTestStore(t)

	old := indexedMessage(1, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	old.Subject = "old"
	recent := indexedMessage(2, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	recent.Subject = "recent"

	for _, msg := range []*types.Message{old, recent} {
		if err := store.MarkArchived(msg, "/tmp/body.txt"); err != nil {
			t.Fatalf("MarkArchived() error = %v", err)
		}
	}

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	folder := "INBOX"
	results, err := store.Search(SearchOptions{FolderPath: &folder, DateFrom: &cutoff})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Search() returned %d messages, want 1", len(results))
	}
	if results[0].Subject != "recent" {
		t.Errorf("Search() returned %q, want %q", results[0].Subject, "recent")
	}
	if results[0].Date.Before(cutoff) {
		t.Errorf("Search() returned message dated %v, before cutoff %v", results[0].Date, cutoff)
	}
}

func TestStore_SearchSenderAndLimit(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC()
	for i := uint32(1); i <= 5; i++ {
		msg := indexedMessage(i, now.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			msg.SenderEmail = "bob@example.org"
		}
		if err := store.MarkArchived(msg, "/tmp/body.txt"); err != nil {
			t.Fatalf("MarkArchived() error = %v", err)
		}
	}

	sender := "bob"
	results, err := store.Search(SearchOptions{Sender: &sender})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search(sender) returned %d messages, want 2", len(results))
	}

	results, err = store.Search(SearchOptions{Limit: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Search(limit=3) returned %d messages, want 3", len(results))
	}
}
