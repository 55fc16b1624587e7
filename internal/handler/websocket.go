package handler

import (
	"context"
	"net/http"
	"time"
)

// HandleWebSocket handles GET /ws
// トークン検証・プレゼンス登録は realtime.Manager が行う
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.Realtime.ServeHTTP(w, r)
}

// DebugSockets handles GET /debug/sockets
func (h *Handler) DebugSockets(w http.ResponseWriter, r *http.Request) {
	users := h.Realtime.ConnectedUsers()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "success",
		"connectedUsers": users,
		"totalConnected": len(users),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"environment": h.Config.Env,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.DB.PingContext(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": "database unreachable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
