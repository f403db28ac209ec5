package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketsim/internal/alerts"
	"marketsim/internal/market"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func bar(symbol string, close int64) market.PricePoint {
	c := decimal.NewFromInt(close)
	return market.PricePoint{
		Symbol: symbol,
		Date:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:   c, High: c, Low: c, Close: c,
		Volume: 1_000_000,
	}
}

// go test -v --run ^TestHubRoutesSubscribedTopics$
func TestHubRoutesSubscribedTopics(t *testing.T) {
	hub, url := startHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(request{Op: "subscribe", Args: []string{KlineTopic("aaa")}}))
	var ack response
	require.NoError(t, ws.ReadJSON(&ack))
	assert.True(t, ack.Success)
	assert.Equal(t, "subscribe", ack.Op)

	hub.PublishPoints([]market.PricePoint{bar("BBB", 5), bar("AAA", 10)})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "kline.1d.AAA", msg.Topic)
	assert.Equal(t, TypeSnapshot, msg.Type)

	var klines []Kline
	require.NoError(t, json.Unmarshal(msg.Data, &klines))
	require.Len(t, klines, 1)
	assert.Equal(t, "10.00", klines[0].Close)
	assert.Equal(t, "AAA", SymbolFromTopic(msg.Topic))
}

// go test -v --run ^TestSubscriberReceivesAlerts$
func TestSubscriberReceivesAlerts(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	sub := NewSubscriber(url, nil, zap.NewNop())
	sub.SetMessageHandler(func(m Message) { got <- m })
	require.NoError(t, sub.Connect(ctx))
	go func() { _ = sub.Listen(ctx) }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	err := hub.Notify(ctx, alerts.Notification{
		AlertID: 7, Symbol: "XYZ", Side: alerts.SideHigh,
		Price: decimal.NewFromInt(101), Threshold: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.Equal(t, "alert.XYZ", msg.Topic)
		assert.Equal(t, TypeAlert, msg.Type)
		var n alerts.Notification
		require.NoError(t, json.Unmarshal(msg.Data, &n))
		assert.EqualValues(t, 7, n.AlertID)
		assert.Equal(t, alerts.SideHigh, n.Side)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not delivered")
	}
}

// go test -v --run ^TestSymbolFromTopic$
func TestSymbolFromTopic(t *testing.T) {
	assert.Equal(t, "AAPL", SymbolFromTopic("kline.1d.AAPL"))
	assert.Equal(t, "AAPL", SymbolFromTopic("alert.AAPL"))
	assert.Empty(t, SymbolFromTopic("orderbook.AAPL.1"))
	assert.Empty(t, SymbolFromTopic("garbage"))
}
