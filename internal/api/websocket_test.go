package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/eventbus"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// joinPeer registers a connectionless client subscribed to channels.
func joinPeer(hub *Hub, channels ...string) *peer {
	p := newPeer(nil, channels...)
	hub.join(p)
	return p
}

func TestHub_Delivery(t *testing.T) {
	tests := []struct {
		name     string
		channels []string
		event    device.EventKind
		want     bool
	}{
		{"exact channel", []string{"device.updated"}, device.EventUpdated, true},
		{"wildcard", []string{AllEvents}, device.EventCleared, true},
		{"other channel", []string{"device.removed"}, device.EventUpdated, false},
		{"no subscriptions", nil, device.EventCreated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := testHub(t)
			client := joinPeer(hub, tt.channels...)

			hub.Observe(device.Event{Kind: tt.event, Record: device.Record{ID: "smart_lamp_10.0.0.5_41000"}})

			select {
			case msg := <-client.outbox:
				if !tt.want {
					t.Fatalf("unexpected message %s", msg)
				}
				var f Frame
				if err := json.Unmarshal(msg, &f); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if f.Type != frameEvent || f.Event != string(tt.event) {
					t.Errorf("frame = %+v", f)
				}
			case <-time.After(100 * time.Millisecond):
				if tt.want {
					t.Error("timed out waiting for broadcast")
				}
			}
		})
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d", hub.ClientCount())
	}

	p := joinPeer(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after join count = %d, want 1", hub.ClientCount())
	}

	hub.leave(p)
	hub.leave(p)
	if hub.ClientCount() != 0 {
		t.Errorf("after leave count = %d, want 0", hub.ClientCount())
	}
	if _, open := <-p.outbox; open {
		t.Error("outbox still open after leave")
	}

	// A reply to a departed client is dropped.
	hub.reply(p, framePong, "late", nil)
}

func TestHub_RunDropsClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{PingInterval: 30, PongTimeout: 10}, testLogger())
	p := joinPeer(hub, AllEvents)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after shutdown", hub.ClientCount())
	}
	hub.Observe(device.Event{Kind: device.EventCleared})
	if _, open := <-p.outbox; open {
		t.Error("outbox still open after shutdown")
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := testHub(t)
	p := joinPeer(hub, AllEvents)

	for i := 0; i < outboxSize+10; i++ {
		hub.Broadcast("device.updated", map[string]int{"n": i})
	}
	if got := len(p.outbox); got != outboxSize {
		t.Errorf("queued = %d, want %d", got, outboxSize)
	}
}

// dialWS starts a real server for srv and connects a WebSocket client.
func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Frame
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_SubscribeAndReceiveRegistryEvents(t *testing.T) {
	deps := testDeps()
	srv, _ := testServer(t, deps)
	ws := dialWS(t, srv)

	subscribe := `{"type":"subscribe","id":"sub-1","payload":{"channels":["device.created","registry.cleared"]}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(subscribe)); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != frameAck || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	if _, _, err := deps.Registry.Upsert("smart_lamp_10.0.0.5_41000", device.Update{
		Endpoint: &device.Endpoint{Type: "smart_lamp", IP: "10.0.0.5", Port: 41000},
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	event := readWS(t, ws)
	if event.Type != frameEvent || event.Event != "device.created" {
		t.Fatalf("event = %+v", event)
	}
	var msg eventbus.Message
	if err := json.Unmarshal(event.Payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.DeviceID != "smart_lamp_10.0.0.5_41000" || msg.Device == nil || msg.Device.Port != 41000 {
		t.Errorf("payload = %+v", msg)
	}

	deps.Registry.Clear()
	cleared := readWS(t, ws)
	if cleared.Event != "registry.cleared" {
		t.Errorf("event = %+v, want registry.cleared", cleared)
	}
}

func TestWebSocket_ControlMessages(t *testing.T) {
	tests := []struct {
		name     string
		send     string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, framePong},
		{"invalid json", `{nope`, frameError},
		{"unknown type", `{"type":"dance","id":"d1"}`, frameError},
		{"subscribe without payload", `{"type":"subscribe","id":"s0"}`, frameError},
		{"empty subscribe", `{"type":"subscribe","id":"s1","payload":{"channels":[]}}`, frameError},
		{"unsubscribe", `{"type":"unsubscribe","id":"u1","payload":{"channels":["device.updated"]}}`, frameAck},
	}

	srv, _ := testServer(t, testDeps())
	ws := dialWS(t, srv)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if got := readWS(t, ws); got.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}
