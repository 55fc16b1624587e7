package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auconnect/internal/auth"
	"auconnect/internal/model"
	"auconnect/internal/presence"
)

// TokenVerifier resolves a handshake credential to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ConnectedUser is the diagnostic view of a presence entry.
type ConnectedUser struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

// Manager owns the WebSocket connections and the presence directory built
// from them. It has no access to message storage: messages are created over
// HTTP only and reach the manager through Push.
type Manager struct {
	verifier  TokenVerifier
	upgrader  websocket.Upgrader
	directory *presence.Directory[*Client]

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewManager creates a manager with an empty presence directory.
// Browser handshakes must come from one of allowedOrigins; requests without
// an Origin header (native clients) are accepted.
func NewManager(verifier TokenVerifier, allowedOrigins []string) *Manager {
	return &Manager{
		verifier:  verifier,
		upgrader:  createUpgrader(allowedOrigins),
		directory: presence.NewDirectory[*Client](),
		clients:   make(map[*Client]struct{}),
	}
}

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedMap[origin]
		},
	}
}

// ServeHTTP authenticates the handshake, upgrades the connection and blocks
// until it closes.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := auth.FromRequest(r)
	if err == nil {
		var userID string
		userID, err = m.verifier.Verify(token)
		if err == nil {
			m.serve(w, r, userID)
			return
		}
	}

	log.Printf("[WebSocket] ❌ Authentication failed from %s: %v", r.RemoteAddr, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(model.Response{Status: "error", Message: "Authentication error: " + err.Error()})
}

func (m *Manager) serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(m, conn, userID)
	m.connect(client)
	defer m.disconnect(client)

	go client.writePump()
	client.readPump()
}

func (m *Manager) connect(c *Client) {
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()

	if previous, replaced := m.directory.Register(c.userID, c); replaced {
		// 古い接続は開いたままだが配信対象から外れる
		log.Printf("[WebSocket] User %s reconnected, connection %s no longer receives pushes", c.userID, previous.ID())
	}
	log.Printf("[WebSocket] 🟢 User connected: %s (connection %s). Online users: %d", c.userID, c.id, m.directory.Len())
}

func (m *Manager) disconnect(c *Client) {
	c.close()

	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()

	m.directory.Unregister(c.userID, c)
	log.Printf("[WebSocket] 🔴 User disconnected: %s (connection %s). Online users: %d", c.userID, c.id, m.directory.Len())
}

func (m *Manager) handleEvent(c *Client, event model.InboundEvent) {
	switch event.Event {
	case model.EventTyping:
		var payload model.TypingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.ReceiverID == "" {
			c.emitError("typing requires receiverId")
			return
		}
		// 相手がオフラインなら何もしない
		if _, err := m.Push(payload.ReceiverID, model.EventUserTyping, model.UserPayload{UserID: c.userID}); err != nil {
			log.Printf("[WebSocket] Typing notice %s → %s dropped: %v", c.userID, payload.ReceiverID, err)
		}

	case model.EventSendMessage:
		c.emitError("Sending messages over the socket is not supported. Use POST /messages/send.")

	case model.EventPing:
		if err := c.emit(model.EventPong, nil); err != nil {
			log.Printf("[WebSocket] Pong to %s dropped: %v", c.userID, err)
		}

	default:
		log.Printf("[WebSocket] Unknown event %q from %s", event.Event, c.userID)
		c.emitError("unknown event: " + event.Event)
	}
}

// Push sends an event to userID's registered connection. It reports whether
// the user was online. Delivery is advisory: a nil error means the frame was
// queued, not that the client received it, and callers must not treat a
// failure as fatal.
func (m *Manager) Push(userID, event string, data interface{}) (bool, error) {
	client, ok := m.directory.Lookup(userID)
	if !ok {
		return false, nil
	}
	return true, client.emit(event, data)
}

// ConnectedUsers lists the presence directory for diagnostics.
func (m *Manager) ConnectedUsers() []ConnectedUser {
	entries := m.directory.List()
	users := make([]ConnectedUser, 0, len(entries))
	for _, e := range entries {
		users = append(users, ConnectedUser{UserID: e.UserID, ConnectionID: e.Handle.ID()})
	}
	return users
}

// Shutdown closes every connection, orphaned ones included, and empties the
// presence directory.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		c.close()
	}
	m.directory.Clear()
	log.Printf("[WebSocket] Closed %d connections", len(clients))
}

// IsOnline reports whether userID has a registered connection.
func (m *Manager) IsOnline(userID string) bool {
	_, ok := m.directory.Lookup(userID)
	return ok
}
