package database

import (
	"database/sql"
	"time"
)

// Message is one archived Telegram group message. Rows are append-only: the
// archiver inserts each (chat_id, message_id) pair once and retrieval only
// reads. MessageID is the chat-local sequence number assigned by Telegram,
// unique within a chat but not across chats; ID is the global storage key.
type Message struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID    string    `db:"chat_id"`
	MessageID int64     `db:"message_id"`
	Timestamp time.Time `db:"timestamp"`
	Text      string    `db:"text"`
	Sender    string    `db:"sender"`
	ChatTitle string    `db:"chat_title"`

	// ReplyToMessageID points at the chat-local MessageID this message
	// replies to; invalid when the message is not a reply.
	ReplyToMessageID sql.NullInt64 `db:"reply_to_message_id"`
}

// IsReply reports whether the message carries a reply link.
func (m *Message) IsReply() bool {
	return m.ReplyToMessageID.Valid
}

// ChatArchiveInfo summarizes what the archive holds for a single chat.
type ChatArchiveInfo struct {
	ChatID       string
	ChatTitle    string
	MessageCount int64
	SenderCount  int64
	FirstMessage time.Time
	LastMessage  time.Time
}

// AdjacentDirection selects which side of a message FindAdjacentMessages
// reads from the chat-local message_id sequence.
type AdjacentDirection int

const (
	// DirectionBefore selects messages with a smaller message_id.
	DirectionBefore AdjacentDirection = iota
	// DirectionAfter selects messages with a larger message_id.
	DirectionAfter
)
