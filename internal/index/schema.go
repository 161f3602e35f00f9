package index

// Schema contains SQL schema definitions for the archive index
const Schema = `
-- Archived messages
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    folder_path TEXT NOT NULL,
    uid INTEGER NOT NULL,
    message_id TEXT,
    subject TEXT,
    sender_name TEXT,
    sender_email TEXT,
    date DATETIME NOT NULL,
    body_path TEXT NOT NULL,
    attachment_count INTEGER NOT NULL DEFAULT 0,
    archived_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(folder_path, uid)
);

-- Indexes for the list queries
CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date);
CREATE INDEX IF NOT EXISTS idx_messages_sender_email ON messages(sender_email);
CREATE INDEX IF NOT EXISTS idx_messages_message_id ON messages(message_id);
`
