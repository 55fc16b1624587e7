package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auconnect/internal/model"
)

// MessageRepository persists direct messages in MariaDB.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository returns a repository backed by db.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = "id, sender_id, receiver_id, content, is_read, created_at, updated_at"

// Create stores a new unread message. Whether sender and receiver exist is
// the caller's concern.
func (r *MessageRepository) Create(ctx context.Context, senderID, receiverID, content string) (*model.Message, error) {
	content, err := model.NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	// DATETIME(6) はマイクロ秒精度
	now := time.Now().UTC().Truncate(time.Microsecond)
	msg := &model.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at, updated_at) VALUES (?, ?, ?, ?, FALSE, ?, ?)",
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ListConversation returns every message exchanged between a and b, oldest first.
func (r *MessageRepository) ListConversation(ctx context.Context, a, b string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?) ORDER BY seq ASC",
		a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return scanMessages(rows)
}

// ListConversationsFor returns one summary per counterpart of userID, most
// recent conversation first.
func (r *MessageRepository) ListConversationsFor(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE sender_id = ? OR receiver_id = ? ORDER BY seq DESC",
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	return Summarize(userID, msgs), nil
}

// MarkRead flags every unread message from counterpartID to userID as read.
func (r *MessageRepository) MarkRead(ctx context.Context, counterpartID, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE, updated_at = ? WHERE receiver_id = ? AND sender_id = ? AND is_read = FALSE",
		time.Now().UTC(), userID, counterpartID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a message on behalf of requesterID, who must be its sender.
func (r *MessageRepository) Delete(ctx context.Context, messageID, requesterID string) (*model.Message, error) {
	msg, err := r.get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, fmt.Errorf("%w: only the sender can delete a message", model.ErrForbidden)
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ? AND sender_id = ?", messageID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	// 並行削除で先を越された場合
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("%w: message %s", model.ErrNotFound, messageID)
	}
	return msg, nil
}

func (r *MessageRepository) get(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", messageID).
		Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Read, &msg.CreatedAt, &msg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %s", model.ErrNotFound, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Read, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// Summarize groups newest-first messages involving userID by counterpart.
// The first message seen per counterpart becomes its LastMessage.
func Summarize(userID string, newestFirst []model.Message) []model.ConversationSummary {
	summaries := []model.ConversationSummary{}
	index := make(map[string]int)

	for _, msg := range newestFirst {
		other := msg.Counterpart(userID)
		i, ok := index[other]
		if !ok {
			i = len(summaries)
			index[other] = i
			summaries = append(summaries, model.ConversationSummary{UserID: other, LastMessage: msg})
		}
		if msg.ReceiverID == userID && !msg.Read {
			summaries[i].UnreadCount++
		}
	}
	return summaries
}
