package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/auth"
	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/tollpass"
)

// WSHub pushes toll events to connected owners. Connections are keyed
// by the anonymous owner hash, так что событие скана находит владельца
// без обращения к таблице users.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamToll, func(event events.Event) {
		h.route(event)
	})
}

// route delivers owner-scoped events only to that owner's connections;
// события без owner_id уходят всем (тарифы, статусы будок).
func (h *WSHub) route(event events.Event) {
	if owner, ok := event.Payload["owner_id"].(string); ok && owner != "" {
		h.sendToOwner(owner, event)
		return
	}
	h.broadcast(event)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.connections {
		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func (h *WSHub) sendToOwner(owner string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[owner] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	// Extract token from query
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	// Тот же хеш, что в userId платёжных payload
	owner := tollpass.IdentityHash(claims.Subject)

	// Register
	h.mu.Lock()
	h.connections[owner] = append(h.connections[owner], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[owner]
		for i, c := range conns {
			if c == conn {
				h.connections[owner] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[owner]) == 0 {
			delete(h.connections, owner)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
