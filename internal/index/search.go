package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/brandon/mailpull/pkg/types"
)

// SearchOptions contains list/search parameters for archived messages
type SearchOptions struct {
	FolderPath *string
	Sender     *string
	Subject    *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
}

// Search queries the archive index for messages matching the options,
// newest first
func (s *Store) Search(opts SearchOptions) ([]types.ArchivedMessage, error) {
	var conditions []string
	var args []interface{}

	if opts.FolderPath != nil {
		conditions = append(conditions, "folder_path = ?")
		args = append(args, *opts.FolderPath)
	}

	if opts.Sender != nil {
		conditions = append(conditions, "(sender_email LIKE ? OR sender_name LIKE ?)")
		searchTerm := "%" + *opts.Sender + "%"
		args = append(args, searchTerm, searchTerm)
	}

	if opts.Subject != nil {
		conditions = append(conditions, "subject LIKE ?")
		args = append(args, "%"+*opts.Subject+"%")
	}

	if opts.DateFrom != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, opts.DateFrom.UTC().Format(time.RFC3339))
	}

	if opts.DateTo != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, opts.DateTo.UTC().Format(time.RFC3339))
	}

	query := `
		SELECT id, folder_path, uid, message_id, subject, sender_name, sender_email, date, body_path, attachment_count, archived_at
		FROM messages
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.index.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived messages: %w", err)
	}
	defer rows.Close()

	var results []types.ArchivedMessage
	for rows.Next() {
		var msg types.ArchivedMessage
		var dateStr, archivedStr string

		err := rows.Scan(
			&msg.ID,
			&msg.FolderPath,
			&msg.UID,
			&msg.MessageID,
			&msg.Subject,
			&msg.SenderName,
			&msg.SenderEmail,
			&dateStr,
			&msg.BodyPath,
			&msg.AttachmentCount,
			&archivedStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived message: %w", err)
		}

		msg.Date = parseStoredTime(dateStr)
		msg.ArchivedAt = parseStoredTime(archivedStr)

		results = append(results, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archived messages: %w", err)
	}

	return results, nil
}

// parseStoredTime parses the formats SQLite hands back for DATETIME columns
func parseStoredTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t
	}
	return time.Time{}
}
