package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/eventbus"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

// Frame types on the event stream.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	framePong        = "pong"
	frameEvent       = "event"
	frameAck         = "response"
	frameError       = "error"
)

// AllEvents subscribes a client to every registry event kind.
const AllEvents = "*"

const outboxSize = 256

// Frame is one JSON message on the event stream, in either direction.
// Outbound event frames carry the registry event kind in Event and an
// eventbus.Message in Payload.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	Time    string          `json:"time,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// channelList is the payload of subscribe and unsubscribe frames.
type channelList struct {
	Channels []string `json:"channels"`
}

// newFrame builds a frame stamped with the current UTC time.
func newFrame(typ, id string, payload any) ([]byte, error) {
	f := Frame{Type: typ, ID: id, Time: time.Now().UTC().Format(time.RFC3339)}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}

// Hub fans registry events out to WebSocket clients. It serves the
// upgrade endpoint itself.
type Hub struct {
	cfg config.WebSocketConfig
	log *logging.Logger

	upgrader websocket.Upgrader

	// mu guards peers. Sends happen under the read lock and an outbox is
	// only closed under the write lock.
	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// peer is one connected client.
type peer struct {
	conn   *websocket.Conn
	outbox chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}
}

func newPeer(conn *websocket.Conn, topics ...string) *peer {
	p := &peer{
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		p.topics[t] = struct{}{}
	}
	return p
}

func (p *peer) wants(kind string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, all := p.topics[AllEvents]; all {
		return true
	}
	_, ok := p.topics[kind]
	return ok
}

func (p *peer) setTopics(channels []string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range channels {
		if on {
			p.topics[ch] = struct{}{}
		} else {
			delete(p.topics, ch)
		}
	}
}

// NewHub creates a hub. Origin checks are left to the CORS middleware.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		peers: make(map[*peer]struct{}),
	}
}

// Run blocks until ctx is cancelled, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		delete(h.peers, p)
		close(p.outbox)
		if p.conn != nil {
			p.conn.Close()
		}
	}
}

// Observe is the registry observer. Each event goes out on the channel
// named by its kind.
func (h *Hub) Observe(e device.Event) {
	h.Broadcast(string(e.Kind), eventbus.NewMessage(e, time.Now()))
}

// Broadcast queues an event frame for every client subscribed to kind or
// to AllEvents. Clients with a full outbox miss the frame.
func (h *Hub) Broadcast(kind string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("encoding websocket event", "event", kind, "error", err)
		return
	}
	data, err := json.Marshal(Frame{
		Type:    frameEvent,
		Event:   kind,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Payload: raw,
	})
	if err != nil {
		h.log.Error("encoding websocket event", "event", kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		if !p.wants(kind) {
			continue
		}
		select {
		case p.outbox <- data:
		default:
			h.log.Debug("websocket client too slow, dropping event", "event", kind)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) join(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.log.Debug("websocket client connected", "clients", n)
}

// leave removes p and closes its outbox. Repeated calls are no-ops.
func (h *Hub) leave(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	if ok {
		delete(h.peers, p)
		close(p.outbox)
	}
	n := len(h.peers)
	h.mu.Unlock()
	if ok {
		h.log.Debug("websocket client disconnected", "clients", n)
	}
}

// reply queues a direct answer for p. Safe after p has left.
func (h *Hub) reply(p *peer, typ, id string, payload any) {
	data, err := newFrame(typ, id, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.peers[p]; !ok {
		return
	}
	select {
	case p.outbox <- data:
	default:
	}
}

func (h *Hub) fail(p *peer, id, message string) {
	h.reply(p, frameError, id, map[string]string{"message": message})
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	p := newPeer(conn)
	h.join(p)
	go h.writeLoop(p)
	go h.readLoop(p)
}

func (h *Hub) readLoop(p *peer) {
	defer func() {
		h.leave(p)
		p.conn.Close()
	}()

	window := h.cfg.PingEvery() + h.cfg.PongWait()
	extend := func(string) error { return p.conn.SetReadDeadline(time.Now().Add(window)) }

	p.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	//nolint:errcheck // deadline errors surface on the next read
	extend("")
	p.conn.SetPongHandler(extend)

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // deadline errors surface on the next read
		extend("")
		h.handleFrame(p, data)
	}
}

func (h *Hub) writeLoop(p *peer) {
	ping := time.NewTicker(h.cfg.PingEvery())
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a stale deadline fails the write below
		p.conn.SetWriteDeadline(time.Now().Add(h.cfg.PongWait()))
		return p.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, open := <-p.outbox:
			if !open {
				//nolint:errcheck // connection is closing anyway
				write(websocket.CloseMessage, nil)
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// handleFrame answers one inbound frame.
func (h *Hub) handleFrame(p *peer, data []byte) {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		h.fail(p, "", "invalid JSON message")
		return
	}

	switch in.Type {
	case framePing:
		h.reply(p, framePong, in.ID, nil)
	case frameSubscribe, frameUnsubscribe:
		var list channelList
		if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &list) != nil || len(list.Channels) == 0 {
			h.fail(p, in.ID, "invalid "+in.Type+" payload")
			return
		}
		on := in.Type == frameSubscribe
		p.setTopics(list.Channels, on)

		key := "unsubscribed"
		if on {
			key = "subscribed"
		}
		h.reply(p, frameAck, in.ID, map[string][]string{key: list.Channels})
	default:
		h.fail(p, in.ID, "unknown message type: "+in.Type)
	}
}
