package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"auconnect/internal/model"
)

// maxBodyBytes はリクエストボディの上限
const maxBodyBytes = 64 << 10

// SendMessage handles POST /messages/send
// メッセージ作成の唯一の入口
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID := currentUser(r)
	log.Printf("[POST /messages/send] Request received from %s (%s)", senderID, r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[POST /messages/send] ❌ Bad Request: %v", err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ReceiverID == "" {
		log.Printf("[POST /messages/send] ❌ Bad Request: missing receiverId")
		respondError(w, http.StatusBadRequest, "receiverId is required")
		return
	}

	msg, err := h.Messages.Deliver(r.Context(), senderID, req.ReceiverID, req.Content)
	if err != nil {
		respondServiceError(w, "POST /messages/send", err)
		return
	}

	log.Printf("[POST /messages/send] ✅ Created message: ID=%s, %s → %s", msg.ID, msg.SenderID, msg.ReceiverID)
	respondJSON(w, http.StatusCreated, model.Response{
		Status:  "success",
		Message: "Message sent successfully",
		Data:    msg,
	})
}

// GetConversation handles GET /messages/conversation/{userId}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	otherID := mux.Vars(r)["userId"]

	msgs, err := h.Messages.Conversation(r.Context(), userID, otherID)
	if err != nil {
		respondServiceError(w, "GET /messages/conversation", err)
		return
	}

	log.Printf("[GET /messages/conversation/%s] ✅ Returned %d messages to %s", otherID, len(msgs), userID)
	respondJSON(w, http.StatusOK, model.Response{
		Status:  "success",
		Message: "Conversation retrieved successfully",
		Data:    msgs,
	})
}

// GetConversations handles GET /messages/conversations
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	summaries, err := h.Messages.Conversations(r.Context(), userID)
	if err != nil {
		respondServiceError(w, "GET /messages/conversations", err)
		return
	}

	respondJSON(w, http.StatusOK, model.Response{
		Status:  "success",
		Message: "Conversations retrieved successfully",
		Data:    summaries,
	})
}

// MarkRead handles PUT /messages/read/{conversationId}
// conversationId は相手ユーザーの ID
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	counterpartID := mux.Vars(r)["conversationId"]

	if err := h.Messages.MarkRead(r.Context(), counterpartID, userID); err != nil {
		respondServiceError(w, "PUT /messages/read", err)
		return
	}

	respondJSON(w, http.StatusOK, model.Response{
		Status:  "success",
		Message: "Messages marked as read",
	})
}

// DeleteMessage handles DELETE /messages/{messageId}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	id := mux.Vars(r)["messageId"]
	log.Printf("[DELETE /messages/%s] Request received from %s", id, userID)

	if err := h.Messages.Delete(r.Context(), id, userID); err != nil {
		respondServiceError(w, "DELETE /messages/"+id, err)
		return
	}

	log.Printf("[DELETE /messages/%s] ✅ Deleted successfully", id)
	respondJSON(w, http.StatusOK, model.Response{
		Status:  "success",
		Message: "Message deleted successfully",
	})
}

// respondServiceError maps the error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, route string, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, model.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrSelfMessage):
		status, message = http.StatusBadRequest, "Cannot send a message to yourself"
	case errors.Is(err, model.ErrBlocked):
		status, message = http.StatusForbidden, "Cannot send message. User is blocked or has blocked you."
	case errors.Is(err, model.ErrForbidden):
		status, message = http.StatusForbidden, "Unauthorized to delete this message"
	case errors.Is(err, model.ErrNotFound):
		status, message = http.StatusNotFound, "Message not found"
	}

	log.Printf("[%s] ❌ %d: %v", route, status, err)
	respondError(w, status, message)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, model.Response{Status: "error", Message: message})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
