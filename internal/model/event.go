package model

import "encoding/json"

// Realtime event names
const (
	EventTyping         = "typing"
	EventSendMessage    = "send_message"
	EventPing           = "ping"
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
	EventMessagesRead   = "messages_read"
	EventMessageDeleted = "message_deleted"
	EventPong           = "pong"
	EventError          = "error"
)

// InboundEvent is a frame sent by a client over the WebSocket
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is a frame pushed by the server over the WebSocket
type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// TypingPayload is the data of an inbound typing event
type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

// UserPayload identifies the user an event is about
type UserPayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload is the data of an error event
type ErrorPayload struct {
	Message string `json:"message"`
}

// MessageDeletedPayload is the data of a message_deleted event
type MessageDeletedPayload struct {
	ID string `json:"id"`
}
