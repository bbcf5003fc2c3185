package seatws

import (
	"encoding/json"
	"log"

	websocket "github.com/gofiber/contrib/websocket"
)

// Hub fans seat-count updates out to clients watching a session. Clients
// are read-only; enrollment changes are pushed in by the enrollment
// service.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	updates    chan *SeatUpdate
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID int64
	send      chan []byte
}

type SeatUpdate struct {
	Type            string `json:"type"`
	SessionID       int64  `json:"session_id"`
	EnrollmentCount int    `json:"enrollment_count"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		updates:    make(chan *SeatUpdate, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID int64) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 8),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.sessionID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.sessionID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.sessionID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.sessionID)
			}
		case update := <-h.updates:
			h.deliver(update)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// PublishSeatCount queues a count change for everyone watching the
// session. Never blocks the caller.
func (h *Hub) PublishSeatCount(sessionID int64, count int) {
	update := &SeatUpdate{
		Type:            "seat_count",
		SessionID:       sessionID,
		EnrollmentCount: count,
	}
	select {
	case h.updates <- update:
	default:
		log.Printf("seat hub update queue full, dropping update for session %d", sessionID)
	}
}

func (h *Hub) deliver(update *SeatUpdate) {
	set, ok := h.clients[update.SessionID]
	if !ok {
		return
	}

	payload, err := json.Marshal(update)
	if err != nil {
		log.Printf("seat hub encode update: %v", err)
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, update.SessionID)
	}
}

// ReadPump drains the connection until the client goes away; incoming
// frames are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
