package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"auconnect/internal/model"
)

// MessageStore persists direct messages.
type MessageStore interface {
	Create(ctx context.Context, senderID, receiverID, content string) (*model.Message, error)
	ListConversation(ctx context.Context, a, b string) ([]model.Message, error)
	ListConversationsFor(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	MarkRead(ctx context.Context, counterpartID, userID string) (int64, error)
	Delete(ctx context.Context, messageID, requesterID string) (*model.Message, error)
}

// RelationshipGate answers whether two users have blocked each other.
type RelationshipGate interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// Notifier pushes realtime events to online users. Pushes are advisory:
// online reports whether the user had a connection, and a non-nil error
// only means this push was lost.
type Notifier interface {
	Push(userID, event string, data interface{}) (online bool, err error)
}

// MessageService is the only component that creates messages. HTTP handlers
// call it; the realtime channel only receives what it pushes.
type MessageService struct {
	store    MessageStore
	gate     RelationshipGate
	notifier Notifier
	locks    *keyedMutex
}

// NewMessageService wires the delivery path.
func NewMessageService(store MessageStore, gate RelationshipGate, notifier Notifier) *MessageService {
	return &MessageService{
		store:    store,
		gate:     gate,
		notifier: notifier,
		locks:    newKeyedMutex(),
	}
}

// Deliver validates, persists and pushes a message. The returned message is
// the persisted record; it is returned even when the push fails.
func (s *MessageService) Deliver(ctx context.Context, senderID, receiverID, content string) (*model.Message, error) {
	if senderID == receiverID {
		return nil, model.ErrSelfMessage
	}
	if receiverID == "" {
		return nil, fmt.Errorf("%w: receiverId is required", model.ErrValidation)
	}
	if !model.ValidUserID(receiverID) {
		return nil, fmt.Errorf("%w: receiverId must be at most %d characters", model.ErrValidation, model.MaxUserIDLength)
	}

	// 同じ会話への送信は保存と配信の順序を保つため直列化する
	unlock := s.locks.Lock(conversationKey(senderID, receiverID))
	defer unlock()

	blocked, err := s.gate.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("check block: %w", err)
	}
	if blocked {
		return nil, model.ErrBlocked
	}

	msg, err := s.store.Create(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}

	s.push(receiverID, model.EventReceiveMessage, msg)
	return msg, nil
}

// Conversation returns the transcript between userID and otherID.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string) ([]model.Message, error) {
	return s.store.ListConversation(ctx, userID, otherID)
}

// Conversations returns the inbox of userID.
func (s *MessageService) Conversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	return s.store.ListConversationsFor(ctx, userID)
}

// MarkRead marks everything counterpartID sent to userID as read and, if
// anything changed, tells the counterpart.
func (s *MessageService) MarkRead(ctx context.Context, counterpartID, userID string) error {
	updated, err := s.store.MarkRead(ctx, counterpartID, userID)
	if err != nil {
		return err
	}
	if updated > 0 {
		s.push(counterpartID, model.EventMessagesRead, model.UserPayload{UserID: userID})
	}
	return nil
}

// Delete removes a message sent by requesterID and tells the receiver.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.store.Delete(ctx, messageID, requesterID)
	if err != nil {
		return err
	}
	s.push(msg.ReceiverID, model.EventMessageDeleted, model.MessageDeletedPayload{ID: msg.ID})
	return nil
}

func (s *MessageService) push(userID, event string, data interface{}) {
	online, err := s.notifier.Push(userID, event, data)
	switch {
	case err != nil:
		log.Printf("[Delivery] ❌ %s to %s not delivered: %v", event, userID, err)
	case online:
		log.Printf("[Delivery] 📨 %s pushed to %s", event, userID)
	}
}

func conversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// keyedMutex hands out one mutex per key and drops it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
