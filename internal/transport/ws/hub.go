// Package ws is the connection substrate: it upgrades HTTP requests to
// websockets, frames named events with acknowledgement correlation, and
// offers unicast and multicast delivery to the layer above. It knows
// nothing about games; handles are opaque and the Handler decides what
// events mean.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridlock/internal/config"
	"github.com/cory-johannsen/gridlock/internal/game/session"
)

// AckFunc replies to the request that carried it. Calling it is optional;
// events without a sequence number get a no-op AckFunc.
type AckFunc func(payload any)

// Handler consumes decoded events from the hub.
//
// HandleEvent and HandleDisconnect for the same connection are invoked
// from that connection's reader goroutine, so per-connection event order
// is preserved. Different connections call in concurrently.
type Handler interface {
	HandleEvent(conn session.HandleID, event string, payload json.RawMessage, ack AckFunc)
	HandleDisconnect(conn session.HandleID)
}

// Hub owns every live websocket connection.
type Hub struct {
	cfg      config.WebsocketConfig
	handler  Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[session.HandleID]*Conn
	nextID session.HandleID
	closed bool
}

// NewHub creates a Hub dispatching to handler.
//
// Precondition: handler and logger must be non-nil.
func NewHub(cfg config.WebsocketConfig, handler Handler, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// Clients are anonymous; the join code is the capability.
				return true
			},
		},
		conns: make(map[session.HandleID]*Conn),
	}
}

// ServeHTTP upgrades the request and runs the connection's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		wsConn.Close()
		return
	}
	h.nextID++
	conn := &Conn{
		id:   h.nextID,
		ws:   wsConn,
		send: make(chan []byte, h.cfg.SendBuffer),
		hub:  h,
	}
	h.conns[conn.id] = conn
	h.mu.Unlock()

	h.logger.Info("client connected",
		zap.Uint64("conn", uint64(conn.id)),
		zap.String("remote_addr", r.RemoteAddr),
	)

	go conn.writePump()
	go conn.readPump()
}

// drop unregisters the connection and notifies the handler exactly once.
func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	current, ok := h.conns[c.id]
	if !ok || current != c {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.closeSend()
	h.logger.Info("client disconnected", zap.Uint64("conn", uint64(c.id)))
	h.handler.HandleDisconnect(c.id)
}

// push marshals an envelope and queues it on c, dropping the connection
// when its buffer is full (a slow consumer surfaces as a disconnect).
func (h *Hub) push(c *Conn, event string, seq uint64, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshalling payload",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	data, err := json.Marshal(Envelope{Event: event, Seq: seq, Payload: body})
	if err != nil {
		h.logger.Error("marshalling envelope", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		h.logger.Warn("send buffer full, dropping connection",
			zap.Uint64("conn", uint64(c.id)),
			zap.String("event", event),
		)
		c.ws.Close()
	}
}

// Unicast delivers an event to one connection. Unknown handles are
// ignored: the connection may have died between lookup and delivery.
func (h *Hub) Unicast(conn session.HandleID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.conns[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.push(c, event, 0, payload)
}

// Multicast delivers an event to each listed connection. The payload is
// marshalled once.
func (h *Hub) Multicast(conns []session.HandleID, event string, payload any) {
	if len(conns) == 0 {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshalling payload", zap.String("event", event), zap.Error(err))
		return
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: body})
	if err != nil {
		h.logger.Error("marshalling envelope", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(conns))
	for _, id := range conns {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			h.logger.Warn("send buffer full, dropping connection",
				zap.Uint64("conn", uint64(c.id)),
				zap.String("event", event),
			)
			c.ws.Close()
		}
	}
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Stop closes every connection and refuses new ones. The write pump owns
// all socket writes, so shutdown only closes each send channel; the pump
// emits the close frame, the peer (or the read deadline) ends the read
// loop, and the normal disconnect path runs.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.closeSend()
	}
	h.logger.Info("websocket hub stopped", zap.Int("connections", len(conns)))
}
