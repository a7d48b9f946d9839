package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridlock/internal/game/session"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

// Conn is one live client connection: the websocket plus a buffered
// outbound queue drained by a dedicated write pump.
type Conn struct {
	id   session.HandleID
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	sendMu     sync.Mutex
	sendClosed bool
}

// ID returns the connection's handle.
func (c *Conn) ID() session.HandleID {
	return c.id
}

// enqueue queues data for the write pump without blocking.
//
// Postcondition: Returns false when the send buffer is full or already
// closed; the caller treats the connection as dead.
func (c *Conn) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the send channel exactly once, which makes the write
// pump emit a close frame and exit. Safe against concurrent enqueues.
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// readPump decodes inbound envelopes and hands them to the hub's handler.
// It owns the read side: deadlines, pong handling, and the disconnect
// notification when the loop exits for any reason.
func (c *Conn) readPump() {
	defer func() {
		c.hub.drop(c)
		c.ws.Close()
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error",
					zap.Uint64("conn", uint64(c.id)),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.logger.Debug("malformed envelope ignored",
				zap.Uint64("conn", uint64(c.id)),
				zap.Error(err),
			)
			continue
		}
		if env.Event == "" {
			continue
		}

		c.dispatch(env)
	}
}

// dispatch invokes the handler with an ack callback bound to the
// envelope's sequence number. Handler panics are contained to this
// connection; the event loop never dies for a bad payload.
func (c *Conn) dispatch(env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.hub.logger.Error("handler panic",
				zap.Uint64("conn", uint64(c.id)),
				zap.String("event", env.Event),
				zap.Any("panic", r),
			)
		}
	}()

	ack := func(payload any) {}
	if env.Seq != 0 {
		seq := env.Seq
		ack = func(payload any) {
			c.hub.push(c, AckEvent, seq, payload)
		}
	}

	c.hub.handler.HandleEvent(c.id, env.Event, env.Payload, ack)
}

// writePump drains the send queue and keeps the connection alive with
// periodic pings. Exactly one writer goroutine exists per connection, so
// websocket writes are never concurrent.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
