package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dealroom/backend/internal/auth"
	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const wsSendBuffer = 32

type wsClient struct {
	dealID string // empty follows every deal
	send   chan []byte
}

// WSHub relays deal events to websocket clients. A client follows a single
// deal through ?deal_id= or every deal when the parameter is absent.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[*wsClient]struct{}
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		log:        log,
		clients:    make(map[*wsClient]struct{}),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamDeal, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("ws: encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	dealID := event.DealID()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients {
		if cl.dealID != "" && cl.dealID != dealID {
			continue
		}
		select {
		case cl.send <- data:
		default:
			h.log.Warn("ws: client too slow, dropping event", zap.String("deal_id", dealID))
		}
	}
}

// Clients reports how many sockets are attached.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
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
	defer conn.Close()

	dealID := conn.Query("deal_id")
	if dealID != "" {
		if _, err := uuid.Parse(dealID); err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid deal_id"}`))
			return
		}
	}

	tokenStr := conn.Query("token")
	switch {
	case tokenStr != "":
		if _, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr); err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
			return
		}
	case h.cfg.AuthRequired:
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		return
	}

	cl := &wsClient{dealID: dealID, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		close(done)
	}()

	// Single writer per connection.
	go func() {
		for {
			select {
			case data := <-cl.send:
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
