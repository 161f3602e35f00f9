package types

import "time"

// Message represents an email message as read from the mail server
type Message struct {
	UID         uint32       `json:"uid"`
	MessageID   string       `json:"message_id"`
	Subject     string       `json:"subject"`
	SenderName  string       `json:"sender_name"`
	SenderEmail string       `json:"sender_email"`
	Recipients  []string     `json:"recipients"`
	Date        time.Time    `json:"date"`
	FolderPath  string       `json:"folder_path"`
	BodyText    string       `json:"body_text,omitempty"`
	BodyHTML    string       `json:"body_html,omitempty"`
	Raw         []byte       `json:"-"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Flags       []string     `json:"flags,omitempty"`
}

// Attachment represents a single named attachment of a message
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}

// ArchivedMessage is an index record of a message that has been written to disk
type ArchivedMessage struct {
	ID              int64     `json:"id"`
	FolderPath      string    `json:"folder_path"`
	UID             uint32    `json:"uid"`
	MessageID       string    `json:"message_id"`
	Subject         string    `json:"subject"`
	SenderName      string    `json:"sender_name"`
	SenderEmail     string    `json:"sender_email"`
	Date            time.Time `json:"date"`
	BodyPath        string    `json:"body_path"`
	AttachmentCount int       `json:"attachment_count"`
	ArchivedAt      time.Time `json:"archived_at"`
}

// Folder represents an email folder/mailbox on the server
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}
