package stream

import (
	"encoding/json"
	"strings"
)

const (
	klineInterval = "1d"

	TypeSnapshot = "snapshot"
	TypeAlert    = "alert"
)

// Message is the envelope pushed to subscribers, e.g. topic "kline.1d.AAPL".
type Message struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Ts    int64           `json:"ts"` // milliseconds when the message was published
	Data  json.RawMessage `json:"data"`
}

// Kline is one published daily bar.
type Kline struct {
	Start  int64  `json:"start"` // simulated day, unix milliseconds
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume int64  `json:"volume"`
}

// request is what subscribers send, e.g. {"op":"subscribe","args":["kline.1d.AAPL"]}.
type request struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// response acknowledges a request.
type response struct {
	Op      string `json:"op"`
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg,omitempty"`
}

func KlineTopic(symbol string) string {
	return "kline." + klineInterval + "." + strings.ToUpper(symbol)
}

func AlertTopic(symbol string) string {
	return "alert." + strings.ToUpper(symbol)
}

// isKlineTopic returns true if the topic string indicates a kline stream.
func isKlineTopic(topic string) bool {
	return strings.HasPrefix(topic, "kline.")
}

// SymbolFromTopic parses the symbol from "kline.1d.AAPL" or "alert.AAPL".
func SymbolFromTopic(topic string) string {
	parts := strings.Split(topic, ".")
	switch {
	case len(parts) == 3 && isKlineTopic(topic):
		return parts[2]
	case len(parts) == 2 && parts[0] == "alert":
		return parts[1]
	}
	return ""
}
