package handlers

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/arnold/gatherings-api/internal/services"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const writeWait = 5 * time.Second

// connection wraps a websocket connection with its viewer, if any
type connection struct {
	conn     *websocket.Conn
	memberID uuid.UUID
	writeMu  sync.Mutex
}

func (c *connection) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub fans gathering events out to the websockets watching each gathering.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*connection]bool // gatheringID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uuid.UUID]map[*connection]bool)}
}

// register adds a connection to a gathering room
func (h *Hub) register(gatheringID uuid.UUID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[gatheringID] == nil {
		h.rooms[gatheringID] = make(map[*connection]bool)
	}
	h.rooms[gatheringID][conn] = true
	slog.Debug("WS register", "gathering_id", gatheringID, "member_id", conn.memberID, "total", len(h.rooms[gatheringID]))
}

// unregister removes a connection from a gathering room
func (h *Hub) unregister(gatheringID uuid.UUID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[gatheringID]; ok {
		delete(conns, conn)
		slog.Debug("WS unregister", "gathering_id", gatheringID, "member_id", conn.memberID, "remaining", len(conns))
		if len(conns) == 0 {
			delete(h.rooms, gatheringID)
		}
	}
}

// Publish sends the event to everyone watching its gathering.
func (h *Hub) Publish(event services.Event) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[event.GatheringID]))
	for c := range h.rooms[event.GatheringID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	msg, err := sonic.Marshal(event)
	if err != nil {
		slog.Error("WS marshal failed", "type", event.Type, "error", err)
		return
	}

	for _, c := range conns {
		if err := c.write(msg); err != nil {
			slog.Warn("WS write failed", "gathering_id", event.GatheringID, "error", err)
		}
	}
}

// WebSocketUpgrade accepts upgrade requests. A token in ?token= or the
// Authorization header identifies the viewer; anonymous viewers are allowed.
func (h *Handler) WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := gatheringID(c); err != nil {
			return respondError(c, err)
		}

		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				tokenString = ""
			}
		}
		if tokenString != "" {
			claims, err := middleware.ParseToken(h.jwtSecret, tokenString)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid or expired token",
					"code":  "UNAUTHENTICATED",
				})
			}
			c.Locals("memberId", claims.MemberID)
		}
		return c.Next()
	}
}

// HandleWebSocket streams a gathering's events until the client disconnects.
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		c.Close()
		return
	}

	memberID, _ := c.Locals("memberId").(uuid.UUID)
	conn := &connection{conn: c, memberID: memberID}
	h.hub.register(id, conn)
	defer h.hub.unregister(id, conn)

	// Keep connection alive; clients only send pings/keepalives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
