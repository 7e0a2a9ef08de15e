package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
	"github.com/lox/holdemd/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

// stateMessage is the per-viewer websocket frame. Table is the public
// snapshot; YourCards carries only the viewer's own hole cards.
type stateMessage struct {
	Type      string        `json:"type"`
	Table     *engine.Table `json:"table"`
	YourCards []string      `json:"yourCards,omitempty"`
}

// Hub fans table state out to websocket subscribers. The action stream is
// HTTP; the socket is a one-way state feed, so clients that lose it can
// always re-sync from GET on the room.
type Hub struct {
	store  store.Store
	logger *log.Logger

	mu     sync.RWMutex
	tables map[string]map[*wsClient]struct{}
}

// NewHub creates an empty hub
func NewHub(st store.Store, logger *log.Logger) *Hub {
	return &Hub{
		store:  st,
		logger: logger.WithPrefix("hub"),
		tables: make(map[string]map[*wsClient]struct{}),
	}
}

type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	tableID   string
	playerID  string
	closeOnce sync.Once
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.tables[c.tableID]
	if subs == nil {
		subs = make(map[*wsClient]struct{})
		h.tables[c.tableID] = subs
	}
	subs[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.tables[c.tableID]
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.tables, c.tableID)
	}
}

// BroadcastState pushes a fresh snapshot to every subscriber of the table.
// Hole cards are attached per viewer from the private-card store so the
// shared frame never leaks another player's hand.
func (h *Hub) BroadcastState(ctx context.Context, t *engine.Table) {
	if t == nil {
		return
	}
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.tables[t.ID]))
	for c := range h.tables[t.ID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		frame, err := h.frameFor(ctx, t, c.playerID)
		if err != nil {
			h.logger.Error("frame build failed", "tableID", t.ID, "error", err)
			continue
		}
		c.enqueue(frame)
	}
}

func (h *Hub) frameFor(ctx context.Context, t *engine.Table, playerID string) ([]byte, error) {
	msg := stateMessage{Type: "state", Table: t}
	if playerID != "" && t.CurrentRound != engine.RoundNone {
		cards, err := h.store.GetPrivateCards(ctx, t.ID, playerID)
		if err == nil {
			msg.YourCards = deck.Encode(cards)
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return json.Marshal(msg)
}

func (c *wsClient) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		// Slow consumer; drop the socket rather than block the hub.
		c.hub.logger.Warn("subscriber send buffer full, closing", "tableID", c.tableID)
		c.close()
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.send)
	})
}

// readPump drains the socket so pongs and close frames are processed.
// Inbound payloads are ignored; all player actions arrive over HTTP.
func (c *wsClient) readPump() {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// For development, allow all origins
		// In production, implement proper origin checking
		return true
	},
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	tableID := r.PathValue("table")
	table, err := s.store.GetTable(r.Context(), tableID)
	if err != nil {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, 64),
		tableID:  tableID,
		playerID: playerID(r),
	}
	s.hub.register(c)

	// Initial snapshot so viewers do not have to wait for the next change.
	if frame, err := s.hub.frameFor(r.Context(), table, c.playerID); err == nil {
		c.enqueue(frame)
	}

	go c.writePump()
	go c.readPump()
}
