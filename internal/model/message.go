package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the upper bound on message content, in runes.
const MaxContentLength = 2000

// MaxUserIDLength matches the width of the user id columns.
const MaxUserIDLength = 64

// ValidUserID reports whether id fits the stored user id columns.
func ValidUserID(id string) bool {
	return id != "" && utf8.RuneCountInString(id) <= MaxUserIDLength
}

// Message represents a direct message between two users
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Counterpart returns the other participant of the message as seen by userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationSummary is one inbox row: the latest message exchanged with a
// counterpart and how many of their messages are still unread.
type ConversationSummary struct {
	UserID      string  `json:"userId"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int     `json:"unreadCount"`
}

// SendMessageRequest is the body of POST /messages/send
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// Response is the JSON envelope returned by every HTTP endpoint
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NormalizeContent trims surrounding whitespace and enforces the content
// bounds shared by every message store.
func NormalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", fmt.Errorf("%w: content must be at most %d characters", ErrValidation, MaxContentLength)
	}
	return content, nil
}
