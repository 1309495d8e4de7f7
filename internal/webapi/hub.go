package webapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"photo-studio/internal/studio"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans session snapshots out to the websocket clients watching them.
type Hub struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]map[*wsClient]struct{}
}

type wsClient struct {
	key  string
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[string]map[*wsClient]struct{})}
}

// Publish sends st to every client of key. Slow clients miss updates rather
// than block the session.
func (h *Hub) Publish(key string, st studio.State) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.subs[key]
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(envelope{Type: "state", Data: newStateView(st)})
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal snapshot")
		return
	}

	for c := range clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug().Str("session", key).Msg("websocket send buffer full")
		}
	}
}

func (h *Hub) Count(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Serve upgrades the request and streams snapshots for key until the client
// goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, key string, initial studio.State) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{key: key, conn: conn, send: make(chan []byte, 16)}
	if data, err := json.Marshal(envelope{Type: "state", Data: newStateView(initial)}); err == nil {
		c.send <- data
	}
	h.register(c)

	go c.writePump()
	c.readPump()
	h.unregister(c)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[c.key] == nil {
		h.subs[c.key] = make(map[*wsClient]struct{})
	}
	h.subs[c.key][c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.subs[c.key]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.subs, c.key)
		}
	}
}

// Drop disconnects every client of key.
func (h *Hub) Drop(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs[key] {
		close(c.send)
	}
	delete(h.subs, key)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the read deadline alive; clients drive the session
// through the REST endpoints.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// SessionFactory builds sessions whose changes are published on h.
func (h *Hub) SessionFactory(opts studio.Options) func(key string) *studio.Session {
	return func(key string) *studio.Session {
		o := opts
		o.OnChange = func(st studio.State) { h.Publish(key, st) }
		return studio.NewSession(o)
	}
}
