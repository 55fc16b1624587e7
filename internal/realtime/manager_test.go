package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"auconnect/internal/auth"
	"auconnect/internal/model"
)

const testSecret = "realtime-test-secret"

type receivedEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func newTestServer(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()
	m := NewManager(auth.NewTokenVerifier(testSecret), []string{"http://localhost:3000"})
	server := httptest.NewServer(m)
	t.Cleanup(func() {
		m.Shutdown()
		server.Close()
	})
	return m, server
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.NewTokenVerifier(testSecret).Issue(userID, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

// dial は接続し、プレゼンスに登録されるまで待つ
func dial(t *testing.T, m *Manager, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(server.URL, "http://", "ws://", 1) + "/?token=" + tokenFor(t, userID)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect as %s: %v", userID, err)
	}
	t.Cleanup(func() { ws.Close() })

	waitFor(t, func() bool { return m.IsOnline(userID) })
	return ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met within 2s")
}

func readEvent(t *testing.T, ws *websocket.Conn) receivedEvent {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev receivedEvent
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return ev
}

func expectNoEvent(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev receivedEvent
	if err := ws.ReadJSON(&ev); err == nil {
		t.Fatalf("Expected no event, got %+v", ev)
	}
}

func TestHandshake_Rejected(t *testing.T) {
	m, server := newTestServer(t)
	base := strings.Replace(server.URL, "http://", "ws://", 1)

	other, _ := auth.NewTokenVerifier("wrong").Issue("alice", time.Minute)
	for name, url := range map[string]string{
		"missing token": base + "/",
		"malformed":     base + "/?token=garbage",
		"wrong secret":  base + "/?token=" + other,
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err == nil {
				t.Fatal("Handshake should fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %v", resp)
			}
		})
	}

	if len(m.ConnectedUsers()) != 0 {
		t.Error("Rejected connections must not be registered")
	}
}

// TestHandshake_ForbiddenOrigin 許可されていない Origin で接続試行
func TestHandshake_ForbiddenOrigin(t *testing.T) {
	m, server := newTestServer(t)
	url := strings.Replace(server.URL, "http://", "ws://", 1) + "/?token=" + tokenFor(t, "alice")

	header := http.Header{}
	header.Set("Origin", "http://forbidden.example.com")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("WebSocket connection from forbidden origin should fail")
	}
	if m.IsOnline("alice") {
		t.Error("alice must not be registered")
	}
}

func TestPush_OnlineAndOffline(t *testing.T) {
	m, server := newTestServer(t)
	bob := dial(t, m, server, "bob")

	online, err := m.Push("bob", model.EventReceiveMessage, model.Message{ID: "m1", Content: "hello"})
	if !online || err != nil {
		t.Fatalf("Expected push to online bob, got online=%v err=%v", online, err)
	}
	ev := readEvent(t, bob)
	if ev.Event != model.EventReceiveMessage || ev.Data["id"] != "m1" || ev.Data["content"] != "hello" {
		t.Errorf("Unexpected event: %+v", ev)
	}

	online, err = m.Push("nobody", model.EventReceiveMessage, model.Message{ID: "m2"})
	if online || err != nil {
		t.Errorf("Push to offline user should be a no-op, got online=%v err=%v", online, err)
	}
}

func TestTyping_ForwardedToReceiver(t *testing.T) {
	m, server := newTestServer(t)
	alice := dial(t, m, server, "alice")
	bob := dial(t, m, server, "bob")

	if err := alice.WriteJSON(map[string]interface{}{"event": "typing", "data": map[string]string{"receiverId": "bob"}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ev := readEvent(t, bob)
	if ev.Event != model.EventUserTyping || ev.Data["userId"] != "alice" {
		t.Errorf("Unexpected event: %+v", ev)
	}
	expectNoEvent(t, alice)
}

func TestTyping_OfflineReceiverIgnored(t *testing.T) {
	m, server := newTestServer(t)
	alice := dial(t, m, server, "alice")

	alice.WriteJSON(map[string]interface{}{"event": "typing", "data": map[string]string{"receiverId": "bob"}})
	expectNoEvent(t, alice)
}

// TestSendMessage_Rejected ソケット経由のメッセージ作成は拒否される
func TestSendMessage_Rejected(t *testing.T) {
	m, server := newTestServer(t)
	alice := dial(t, m, server, "alice")
	bob := dial(t, m, server, "bob")

	alice.WriteJSON(map[string]interface{}{"event": "send_message", "data": map[string]string{"receiverId": "bob", "content": "hi"}})

	ev := readEvent(t, alice)
	if ev.Event != model.EventError || !strings.Contains(ev.Data["message"].(string), "/messages/send") {
		t.Errorf("Expected error pointing to HTTP send, got %+v", ev)
	}
	expectNoEvent(t, bob)

	// エラー後も接続は維持される
	alice.WriteJSON(map[string]string{"event": "ping"})
	if ev := readEvent(t, alice); ev.Event != model.EventPong {
		t.Errorf("Expected pong, got %+v", ev)
	}
}

func TestInvalidFrames_ReportErrors(t *testing.T) {
	m, server := newTestServer(t)
	alice := dial(t, m, server, "alice")

	alice.WriteMessage(websocket.TextMessage, []byte("not json"))
	if ev := readEvent(t, alice); ev.Event != model.EventError {
		t.Errorf("Expected error for malformed frame, got %+v", ev)
	}

	alice.WriteJSON(map[string]string{"event": "dance"})
	if ev := readEvent(t, alice); ev.Event != model.EventError {
		t.Errorf("Expected error for unknown event, got %+v", ev)
	}

	alice.WriteJSON(map[string]interface{}{"event": "typing", "data": map[string]string{}})
	if ev := readEvent(t, alice); ev.Event != model.EventError {
		t.Errorf("Expected error for typing without receiver, got %+v", ev)
	}

	if !m.IsOnline("alice") {
		t.Error("Handling errors must not close the connection")
	}
}

func TestDisconnect_Unregisters(t *testing.T) {
	m, server := newTestServer(t)
	alice := dial(t, m, server, "alice")

	alice.Close()
	waitFor(t, func() bool { return !m.IsOnline("alice") })

	if len(m.ConnectedUsers()) != 0 {
		t.Errorf("Expected empty directory, got %+v", m.ConnectedUsers())
	}
}

// TestReconnect_StaleDisconnectKeepsNewConnection 古い接続の切断で新しい接続が外れない
func TestReconnect_StaleDisconnectKeepsNewConnection(t *testing.T) {
	m, server := newTestServer(t)

	first := dial(t, m, server, "alice")
	firstID := m.ConnectedUsers()[0].ConnectionID

	second := dial(t, m, server, "alice")
	waitFor(t, func() bool {
		users := m.ConnectedUsers()
		return len(users) == 1 && users[0].ConnectionID != firstID
	})

	first.Close()
	// 古い接続の後始末が終わるのを待つ
	time.Sleep(200 * time.Millisecond)

	if !m.IsOnline("alice") {
		t.Fatal("Closing the stale connection evicted the newer one")
	}

	m.Push("alice", model.EventUserTyping, model.UserPayload{UserID: "bob"})
	if ev := readEvent(t, second); ev.Event != model.EventUserTyping {
		t.Errorf("Expected push on newest connection, got %+v", ev)
	}
}

func TestShutdown_ClosesConnections(t *testing.T) {
	m, server := newTestServer(t)
	alice := dial(t, m, server, "alice")

	m.Shutdown()

	if len(m.ConnectedUsers()) != 0 {
		t.Error("Directory should be empty after shutdown")
	}
	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Error("Connection should be closed after shutdown")
	}
}
