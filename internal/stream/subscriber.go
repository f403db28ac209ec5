package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscriber is a websocket client for a Hub. It resubscribes to its topics
// after every reconnect.
type Subscriber struct {
	url     string
	topics  []string
	handler func(Message)
	retry   time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSubscriber creates a client for url. An empty topic list receives everything.
func NewSubscriber(url string, topics []string, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		url:    url,
		topics: topics,
		retry:  3 * time.Second,
		logger: logger,
	}
}

// SetMessageHandler sets the function to handle incoming topic messages.
func (s *Subscriber) SetMessageHandler(h func(Message)) {
	s.handler = h
}

// Connect dials the hub and sends the subscription. It does not start the listener.
func (s *Subscriber) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.logger.Error("failed to connect to websocket", zap.String("url", s.url), zap.Error(err))
		return err
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("websocket connected", zap.String("url", s.url))

	if len(s.topics) == 0 {
		return nil
	}
	if err := conn.WriteJSON(request{Op: "subscribe", Args: s.topics}); err != nil {
		return fmt.Errorf("websocket subscribe failed: %w", err)
	}
	return nil
}

// Listen reads messages until ctx is cancelled, reconnecting on read errors.
func (s *Subscriber) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("websocket read error", zap.Error(err))

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retry):
				}
				if err := s.Connect(ctx); err != nil {
					s.logger.Warn("retrying reconnect", zap.Error(err))
					continue
				}
				s.logger.Info("reconnected successfully")
				break
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("failed to parse message", zap.Error(err))
			continue
		}
		if msg.Topic == "" {
			continue // subscription acks
		}
		if s.handler != nil {
			s.handler(msg)
		}
	}
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
