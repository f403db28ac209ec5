package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"marketsim/internal/alerts"
	"marketsim/internal/market"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

// Hub fans published bars and fired alerts out to websocket subscribers.
// A connection without subscriptions receives every topic.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*conn]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{
		hub:    h,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("websocket subscriber connected", zap.String("remote", r.RemoteAddr))

	go c.writeLoop()
	c.readLoop()
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// PublishPoints sends one snapshot message per bar on its kline topic.
func (h *Hub) PublishPoints(points []market.PricePoint) {
	for _, p := range points {
		kline := Kline{
			Start:  p.Date.UnixMilli(),
			Open:   p.Open.StringFixed(2),
			High:   p.High.StringFixed(2),
			Low:    p.Low.StringFixed(2),
			Close:  p.Close.StringFixed(2),
			Volume: p.Volume,
		}
		if err := h.publish(KlineTopic(p.Symbol), TypeSnapshot, []Kline{kline}); err != nil {
			h.logger.Warn("failed to publish kline", zap.String("symbol", p.Symbol), zap.Error(err))
		}
	}
}

// Notify broadcasts a fired alert on its alert topic.
func (h *Hub) Notify(_ context.Context, n alerts.Notification) error {
	return h.publish(AlertTopic(n.Symbol), TypeAlert, n)
}

func (h *Hub) publish(topic, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	msg, err := json.Marshal(Message{
		Topic: topic,
		Type:  typ,
		Ts:    time.Now().UnixMilli(),
		Data:  payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// slow subscriber, drop and let the write loop close it
			h.logger.Warn("dropping message for slow subscriber", zap.String("topic", topic))
			go h.remove(c)
		}
	}
	return nil
}

type conn struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}
}

func (c *conn) wants(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	_, ok := c.topics[topic]
	return ok
}

func (c *conn) readLoop() {
	defer func() {
		c.hub.remove(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req request
		if err := c.ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handle(req)
	}
}

func (c *conn) handle(req request) {
	resp := response{Op: req.Op, Success: true}

	c.mu.Lock()
	switch req.Op {
	case "subscribe":
		for _, topic := range req.Args {
			c.topics[topic] = struct{}{}
		}
	case "unsubscribe":
		for _, topic := range req.Args {
			delete(c.topics, topic)
		}
	case "ping":
		resp.Op = "pong"
	default:
		resp.Success = false
		resp.RetMsg = "unknown op: " + req.Op
	}
	c.mu.Unlock()

	msg, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; ok {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
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
