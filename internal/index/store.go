package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailpull/pkg/types"
)

// Store provides methods for recording and querying archived messages
type Store struct {
	index  *Index
	logger *logrus.Logger
}

// NewStore creates a new store instance
func NewStore(index *Index, logger *logrus.Logger) *Store {
	return &Store{
		index:  index,
		logger: logger,
	}
}

// MarkArchived records that a message has been written to disk
func (s *Store) MarkArchived(msg *types.Message, bodyPath string) error {
	query := `
		INSERT INTO messages (folder_path, uid, message_id, subject, sender_name, sender_email, date, body_path, attachment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder_path, uid) DO UPDATE SET
			message_id = excluded.message_id,
			subject = excluded.subject,
			sender_name = excluded.sender_name,
			sender_email = excluded.sender_email,
			date = excluded.date,
			body_path = excluded.body_path,
			attachment_count = excluded.attachment_count,
			archived_at = CURRENT_TIMESTAMP
	`
	_, err := s.index.DB().Exec(query,
		msg.FolderPath,
		msg.UID,
		msg.MessageID,
		msg.Subject,
		msg.SenderName,
		msg.SenderEmail,
		msg.Date.UTC().Format(time.RFC3339),
		bodyPath,
		len(msg.Attachments),
	)
	if err != nil {
		return fmt.Errorf("failed to record archived message: %w", err)
	}

	return nil
}

// IsArchived reports whether a message has already been archived
func (s *Store) IsArchived(folderPath string, uid uint32) (bool, error) {
	var one int
	err := s.index.DB().QueryRow("SELECT 1 FROM messages WHERE folder_path = ? AND uid = ?", folderPath, uid).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query archived message: %w", err)
	}
	return true, nil
}

// LastUID returns the highest archived UID for a folder, or 0 when the
// folder has never been archived
func (s *Store) LastUID(folderPath string) (uint32, error) {
	var uid sql.NullInt64
	err := s.index.DB().QueryRow("SELECT MAX(uid) FROM messages WHERE folder_path = ?", folderPath).Scan(&uid)
	if err != nil {
		return 0, fmt.Errorf("failed to query last UID: %w", err)
	}
	if !uid.Valid {
		return 0, nil
	}
	return uint32(uid.Int64), nil
}

// Count returns the number of archived messages for a folder
func (s *Store) Count(folderPath string) (int, error) {
	var count int
	err := s.index.DB().QueryRow("SELECT COUNT(*) FROM messages WHERE folder_path = ?", folderPath).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count archived messages: %w", err)
	}
	return count, nil
}
