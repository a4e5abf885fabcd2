package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const messageColumns = `id, created_at, chat_id, message_id, timestamp, text, sender, chat_title, reply_to_message_id`

// Store defines the interface for archive operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record. A message whose
	// (chat_id, message_id) pair is already archived is skipped silently;
	// the archive is append-only and never rewrites an existing row.
	SaveMessage(ctx context.Context, message *Message) error

	// FindMessagesByKeywords returns every message in the chat whose
	// timestamp falls inside [start, end] and whose text contains at least
	// one of the keywords as a case-insensitive substring. Results are
	// ordered by timestamp, then message_id.
	FindMessagesByKeywords(ctx context.Context, chatID string, start, end time.Time, keywords []string) ([]Message, error)

	// FindAdjacentMessages returns up to limit messages on one side of
	// messageID in the chat-local message_id sequence, nearest first.
	// limit <= 0 returns no rows.
	FindAdjacentMessages(ctx context.Context, chatID string, messageID int64, direction AdjacentDirection, limit int) ([]Message, error)

	// FindReplies returns the direct replies to parentMessageID within the
	// chat, ordered by timestamp, then message_id.
	FindReplies(ctx context.Context, chatID string, parentMessageID int64) ([]Message, error)

	// GetMessagesInRange returns all messages in the chat with timestamps
	// inside [start, end], ordered by timestamp, then message_id.
	GetMessagesInRange(ctx context.Context, chatID string, start, end time.Time) ([]Message, error)

	// ListActiveChats returns the IDs of chats that archived at least one
	// message at or after the given time.
	ListActiveChats(ctx context.Context, since time.Time) ([]string, error)

	// GetChatArchiveInfo summarizes the archive contents for one chat.
	// A chat with no archived messages yields a zero-count summary, not an
	// error.
	GetChatArchiveInfo(ctx context.Context, chatID string) (*ChatArchiveInfo, error)

	// DeleteChatMessages removes every archived message for the chat along
	// with its search rows, returning the number of messages deleted.
	DeleteChatMessages(ctx context.Context, chatID string) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage inserts a new message record and its lowered search row in one
// transaction, skipping the insert when the (chat_id, message_id) pair is
// already archived.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == "" {
		return fmt.Errorf("message must have a non-empty chat_id")
	}
	if message.MessageID <= 0 {
		return fmt.Errorf("message must have a positive message_id")
	}
	if message.Text == "" {
		return fmt.Errorf("message must have non-empty text")
	}
	if message.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}

	message.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	query := `
        INSERT INTO messages (created_at, chat_id, message_id, timestamp, text, sender, chat_title, reply_to_message_id)
        VALUES (:created_at, :chat_id, :message_id, :timestamp, :text, :sender, :chat_title, :reply_to_message_id)
        ON CONFLICT (chat_id, message_id) DO NOTHING;
    `

	result, err := tx.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to save message (chat %s, message %d): %w", message.ChatID, message.MessageID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected for message (chat %s, message %d): %w",
			message.ChatID, message.MessageID, err)
	}
	if affected == 0 {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		tx = nil
		s.logger.DebugContext(ctx, "Message already archived, skipping",
			"chat_id", message.ChatID, "message_id", message.MessageID)
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.ErrorContext(ctx, "Could not retrieve last insert ID after saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to read inserted message id: %w", err)
	}
	message.ID = id

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_search (message_ref, content) VALUES (?, ?);`,
		id, strings.ToLower(message.Text),
	); err != nil {
		s.logger.ErrorContext(ctx, "Error saving message search row",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to save search row for message %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message saved",
		"chat_id", message.ChatID, "message_id", message.MessageID, "db_id", id)
	return nil
}

// FindMessagesByKeywords performs the case-insensitive substring match over
// the chat and date range. Folding happens in Go on both sides: keywords are
// lowered here and message text was lowered into message_search at save time,
// because SQLite's own lower()/LIKE only fold ASCII.
func (s *sqlxStore) FindMessagesByKeywords(ctx context.Context, chatID string, start, end time.Time, keywords []string) ([]Message, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat_id cannot be empty")
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword list cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	conds := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords)+3)
	args = append(args, chatID, start, end)
	for _, kw := range keywords {
		if kw == "" {
			return nil, fmt.Errorf("keyword cannot be empty")
		}
		conds = append(conds, "instr(s.content, ?) > 0")
		args = append(args, strings.ToLower(kw))
	}

	query := fmt.Sprintf(`
        SELECT m.id, m.created_at, m.chat_id, m.message_id, m.timestamp, m.text, m.sender, m.chat_title, m.reply_to_message_id
        FROM messages m
        JOIN message_search s ON s.message_ref = m.id
        WHERE m.chat_id = ? AND m.timestamp >= ? AND m.timestamp <= ? AND (%s)
        ORDER BY m.timestamp ASC, m.message_id ASC;
    `, strings.Join(conds, " OR "))

	s.logger.DebugContext(ctx, "Searching messages by keywords",
		"chat_id", chatID, "keywords", len(keywords), "start", start, "end", end)

	var messages []Message
	err := s.db.SelectContext(ctx, &messages, query, args...)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation during keyword search",
			"chat_id", chatID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error searching messages by keywords", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to search messages in chat %s: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Keyword search complete", "chat_id", chatID, "count", len(messages))
	return messages, nil
}

// FindAdjacentMessages returns the nearest messages on one side of messageID
// in the chat-local sequence, nearest first.
func (s *sqlxStore) FindAdjacentMessages(ctx context.Context, chatID string, messageID int64, direction AdjacentDirection, limit int) ([]Message, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat_id cannot be empty")
	}
	if limit <= 0 {
		return []Message{}, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var op, order string
	switch direction {
	case DirectionBefore:
		op, order = "<", "DESC"
	case DirectionAfter:
		op, order = ">", "ASC"
	default:
		return nil, fmt.Errorf("unknown adjacency direction: %d", direction)
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM messages
        WHERE chat_id = ? AND message_id %s ?
        ORDER BY message_id %s
        LIMIT ?;
    `, messageColumns, op, order)

	var messages []Message
	err := s.db.SelectContext(ctx, &messages, query, chatID, messageID, limit)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching adjacent messages",
			"chat_id", chatID, "message_id", messageID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching adjacent messages",
			"chat_id", chatID, "message_id", messageID, "error", err)
		return nil, fmt.Errorf("failed to get adjacent messages for chat %s message %d: %w", chatID, messageID, err)
	}

	return messages, nil
}

// FindReplies returns the direct replies to parentMessageID within the chat.
func (s *sqlxStore) FindReplies(ctx context.Context, chatID string, parentMessageID int64) ([]Message, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat_id cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM messages
        WHERE chat_id = ? AND reply_to_message_id = ?
        ORDER BY timestamp ASC, message_id ASC;
    `, messageColumns)

	var messages []Message
	err := s.db.SelectContext(ctx, &messages, query, chatID, parentMessageID)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching replies",
			"chat_id", chatID, "parent_message_id", parentMessageID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching replies",
			"chat_id", chatID, "parent_message_id", parentMessageID, "error", err)
		return nil, fmt.Errorf("failed to get replies for chat %s message %d: %w", chatID, parentMessageID, err)
	}

	return messages, nil
}

// GetMessagesInRange returns all messages in the chat within [start, end].
func (s *sqlxStore) GetMessagesInRange(ctx context.Context, chatID string, start, end time.Time) ([]Message, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat_id cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM messages
        WHERE chat_id = ? AND timestamp >= ? AND timestamp <= ?
        ORDER BY timestamp ASC, message_id ASC;
    `, messageColumns)

	var messages []Message
	err := s.db.SelectContext(ctx, &messages, query, chatID, start, end)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching message range",
			"chat_id", chatID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching message range", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get messages for chat %s: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Fetched message range", "chat_id", chatID, "count", len(messages))
	return messages, nil
}

// ListActiveChats returns the IDs of chats with archived messages at or after
// the given time.
func (s *sqlxStore) ListActiveChats(ctx context.Context, since time.Time) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var chatIDs []string
	query := `
        SELECT DISTINCT chat_id
        FROM messages
        WHERE timestamp >= ?
        ORDER BY chat_id;
    `

	err := s.db.SelectContext(ctx, &chatIDs, query, since)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing active chats", "since", since, "error", err)
		return nil, fmt.Errorf("failed to list active chats: %w", err)
	}

	return chatIDs, nil
}

// GetChatArchiveInfo summarizes the archive contents for one chat.
func (s *sqlxStore) GetChatArchiveInfo(ctx context.Context, chatID string) (*ChatArchiveInfo, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat_id cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	info := &ChatArchiveInfo{ChatID: chatID}

	if err := s.db.GetContext(ctx, &info.MessageCount,
		`SELECT COUNT(*) FROM messages WHERE chat_id = ?;`, chatID); err != nil {
		s.logger.ErrorContext(ctx, "Error counting archived messages", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to count messages for chat %s: %w", chatID, err)
	}
	if info.MessageCount == 0 {
		return info, nil
	}

	if err := s.db.GetContext(ctx, &info.SenderCount,
		`SELECT COUNT(DISTINCT sender) FROM messages WHERE chat_id = ? AND sender != '';`, chatID); err != nil {
		return nil, fmt.Errorf("failed to count senders for chat %s: %w", chatID, err)
	}

	if err := s.db.GetContext(ctx, &info.ChatTitle,
		`SELECT chat_title FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT 1;`, chatID); err != nil {
		return nil, fmt.Errorf("failed to get chat title for chat %s: %w", chatID, err)
	}

	if err := s.db.GetContext(ctx, &info.FirstMessage,
		`SELECT timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp ASC, message_id ASC LIMIT 1;`, chatID); err != nil {
		return nil, fmt.Errorf("failed to get first message time for chat %s: %w", chatID, err)
	}

	if err := s.db.GetContext(ctx, &info.LastMessage,
		`SELECT timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp DESC, message_id DESC LIMIT 1;`, chatID); err != nil {
		return nil, fmt.Errorf("failed to get last message time for chat %s: %w", chatID, err)
	}

	return info, nil
}

// DeleteChatMessages removes every archived message for the chat together
// with its search rows in a single transaction.
func (s *sqlxStore) DeleteChatMessages(ctx context.Context, chatID string) (int64, error) {
	if chatID == "" {
		return 0, fmt.Errorf("chat_id cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for chat reset", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to begin transaction for chat reset: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	// Search rows go first; foreign key enforcement is off by default in
	// SQLite, so the cascade cannot be relied on.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM message_search WHERE message_ref IN (SELECT id FROM messages WHERE chat_id = ?);`,
		chatID); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting search rows during chat reset", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to delete search rows for chat %s: %w", chatID, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?;`, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting messages during chat reset", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to delete messages for chat %s: %w", chatID, err)
	}
	count, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit chat reset transaction", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to commit chat reset transaction: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Chat archive deleted", "chat_id", chatID, "messages_deleted", count)
	return count, nil
}

// RunSQLMaintenance refreshes planner statistics and compacts the database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (ANALYZE) failed", "error", err)
		return fmt.Errorf("failed to execute ANALYZE: %w", err)
	}

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance completed")
	}

	return nil
}
