package handler

import (
	"database/sql"

	"github.com/gorilla/mux"

	"auconnect/internal/config"
	"auconnect/internal/realtime"
	"auconnect/internal/service"
)

// Handler holds application dependencies
type Handler struct {
	DB       *sql.DB // nil when running on the in-memory store
	Config   config.Config
	Messages *service.MessageService
	Realtime *realtime.Manager
	Verifier TokenVerifier
}

// New creates a new Handler with the given dependencies
func New(db *sql.DB, cfg config.Config, messages *service.MessageService, rt *realtime.Manager, verifier TokenVerifier) *Handler {
	return &Handler{
		DB:       db,
		Config:   cfg,
		Messages: messages,
		Realtime: rt,
		Verifier: verifier,
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// ヘルスチェック
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/ready", h.Ready).Methods("GET")
	r.HandleFunc("/debug/sockets", h.DebugSockets).Methods("GET")

	// REST API (認証必須)
	messages := r.PathPrefix("/messages").Subrouter()
	messages.Use(h.RequireAuth)
	messages.HandleFunc("/send", h.SendMessage).Methods("POST")
	messages.HandleFunc("/conversation/{userId}", h.GetConversation).Methods("GET")
	messages.HandleFunc("/conversations", h.GetConversations).Methods("GET")
	messages.HandleFunc("/read/{conversationId}", h.MarkRead).Methods("PUT")
	messages.HandleFunc("/{messageId}", h.DeleteMessage).Methods("DELETE")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	return r
}
