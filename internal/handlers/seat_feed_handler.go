package handlers

import (
	"strconv"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	seatws "github.com/narbek-a/KidsClubBack/internal/websocket"
)

// SeatFeedHandler streams live enrollment counts for a session over a
// websocket.
type SeatFeedHandler struct {
	hub *seatws.Hub
}

func NewSeatFeedHandler(hub *seatws.Hub) *SeatFeedHandler {
	return &SeatFeedHandler{hub: hub}
}

func (h *SeatFeedHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *SeatFeedHandler) HandleWebSocket(conn *websocket.Conn) {
	sessionID, err := strconv.ParseInt(conn.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		_ = conn.Close()
		return
	}

	client := seatws.NewClient(h.hub, conn, sessionID)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}
