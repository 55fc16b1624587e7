package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"auconnect/internal/model"
)

type blockKey struct {
	blocker string
	blocked string
}

// Memory is an in-process message store and block gate. It backs the
// server when no database is configured (DB_NAME empty) and the tests.
// Messages are kept in insertion order.
type Memory struct {
	mu       sync.Mutex
	messages []model.Message
	blocks   map[blockKey]struct{}
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[blockKey]struct{})}
}

func (m *Memory) Create(_ context.Context, senderID, receiverID, content string) (*model.Message, error) {
	content, err := model.NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	msg := model.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *Memory) ListConversation(_ context.Context, a, b string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := []model.Message{}
	for _, msg := range m.messages {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func (m *Memory) ListConversationsFor(_ context.Context, userID string) ([]model.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newestFirst []model.Message
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.SenderID == userID || msg.ReceiverID == userID {
			newestFirst = append(newestFirst, msg)
		}
	}
	return Summarize(userID, newestFirst), nil
}

func (m *Memory) MarkRead(_ context.Context, counterpartID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var updated int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ReceiverID == userID && msg.SenderID == counterpartID && !msg.Read {
			msg.Read = true
			msg.UpdatedAt = now
			updated++
		}
	}
	return updated, nil
}

func (m *Memory) Delete(_ context.Context, messageID, requesterID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.messages {
		if msg.ID != messageID {
			continue
		}
		if msg.SenderID != requesterID {
			return nil, fmt.Errorf("%w: only the sender can delete a message", model.ErrForbidden)
		}
		m.messages = append(m.messages[:i], m.messages[i+1:]...)
		return &msg, nil
	}
	return nil, fmt.Errorf("%w: message %s", model.ErrNotFound, messageID)
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *Memory) IsBlocked(_ context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ab := m.blocks[blockKey{a, b}]
	_, ba := m.blocks[blockKey{b, a}]
	return ab || ba, nil
}

func (m *Memory) Block(_ context.Context, blockerID, blockedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[blockKey{blockerID, blockedID}] = struct{}{}
	return nil
}
