package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/coursegen-backend/internal/observability"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32

	CloseReasonReplaced = "replaced"
)

// Conn is one user's socket. Writes happen only on the writer goroutine.
type Conn struct {
	UserID string

	ws   *websocket.Conn
	send chan Event
	log  *logger.Logger

	closeOnce   sync.Once
	closeCode   int
	closeReason string
	quit        chan struct{}
	done        chan struct{}
}

func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.quit)
	})
}

// Done is closed once the socket has been shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) enqueue(ev Event) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		c.log.Warn("Dropping realtime event; outbound buffer full", "type", ev.Type)
		return false
	}
}

func (c *Conn) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()
	for {
		select {
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.log.Debug("Realtime write failed", "error", err)
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.quit:
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			return
		}
	}
}

// Hub owns at most one socket per user.
type Hub struct {
	log *logger.Logger

	regMu sync.Mutex
	mu    sync.RWMutex
	conns map[string]*Conn
	bus   Bus
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:   log.With("component", "RealtimeHub"),
		conns: make(map[string]*Conn),
	}
}

// UseBus routes Publish through b; call StartForwarder to deliver what it carries.
func (h *Hub) UseBus(b Bus) { h.bus = b }

func (h *Hub) StartForwarder(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	return h.bus.StartForwarder(ctx, func(env Envelope) {
		h.Send(env.UserID, env.Event)
	})
}

// Register stores ws for userID. An existing socket for the same user is
// closed with reason "replaced" and fully shut down first.
func (h *Hub) Register(userID string, ws *websocket.Conn) *Conn {
	c := &Conn{
		UserID: userID,
		ws:     ws,
		send:   make(chan Event, sendBuffer),
		log:    h.log.With("user_id", userID),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	h.regMu.Lock()
	defer h.regMu.Unlock()

	h.mu.RLock()
	prev := h.conns[userID]
	h.mu.RUnlock()
	if prev != nil {
		prev.Close(websocket.CloseNormalClosure, CloseReasonReplaced)
		<-prev.Done()
		h.log.Info("Displaced previous socket", "user_id", userID)
	}

	h.mu.Lock()
	h.conns[userID] = c
	h.mu.Unlock()
	observability.WSConnected()

	go c.writeLoop()
	return c
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if h.conns[c.UserID] == c {
		delete(h.conns, c.UserID)
	}
	h.mu.Unlock()
	observability.WSDisconnected()
}

// Send delivers to a locally connected user without blocking.
func (h *Hub) Send(userID string, ev Event) bool {
	h.mu.RLock()
	c := h.conns[userID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	return c.enqueue(ev)
}

// Publish delivers through the bus when one is attached, otherwise locally.
func (h *Hub) Publish(ctx context.Context, userID string, ev Event) {
	if userID == "" {
		return
	}
	if h.bus != nil {
		if err := h.bus.Publish(ctx, Envelope{UserID: userID, Event: ev}); err != nil {
			h.log.Warn("Bus publish failed; delivering locally", "error", err)
			h.Send(userID, ev)
		}
		return
	}
	h.Send(userID, ev)
}

func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// Serve registers ws and reads client messages until the socket closes.
func (h *Hub) Serve(ctx context.Context, userID string, ws *websocket.Conn, router *Router) {
	c := h.Register(userID, ws)
	defer func() {
		c.Close(websocket.CloseNormalClosure, "")
		<-c.Done()
		h.unregister(c)
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		msg := &Message{UserID: userID, Reply: func(ev Event) { c.enqueue(ev) }}
		if err := json.Unmarshal(raw, msg); err != nil {
			c.enqueue(ErrorEvent("message must be a json object"))
			continue
		}
		if err := router.Dispatch(ctx, msg); err != nil {
			c.log.Warn("Realtime handler failed", "type", msg.Type, "error", err)
			c.enqueue(ErrorEvent(err.Error()))
		}
	}
}
