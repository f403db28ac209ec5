package trading

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidOrder is returned for malformed orders. Business rejections are
// reported through OrderResult instead.
var ErrInvalidOrder = errors.New("trading: invalid order")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// RejectionCode names why an order was not filled.
type RejectionCode string

const (
	NotFilled          RejectionCode = "NOT_FILLED"
	InsufficientFunds  RejectionCode = "INSUFFICIENT_FUNDS"
	InsufficientShares RejectionCode = "INSUFFICIENT_SHARES"
	NoPosition         RejectionCode = "NO_POSITION"
)

type Order struct {
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Type       OrderType        `json:"order_type"`
	Quantity   int64            `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

// normalize uppercases the symbol, defaults the type to market and checks
// the fields that do not depend on account state.
func (o *Order) normalize() error {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	if o.Type == "" {
		o.Type = OrderMarket
	}
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, o.Quantity)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	switch o.Type {
	case OrderMarket:
		o.LimitPrice = nil
	case OrderLimit:
		if o.LimitPrice == nil || !o.LimitPrice.IsPositive() {
			return fmt.Errorf("%w: limit order needs a positive limit price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, o.Type)
	}
	return nil
}

// Rejection describes a refused order and the numbers behind the decision.
// Only the fields relevant to Code are set.
type Rejection struct {
	Code           RejectionCode    `json:"code"`
	Message        string           `json:"message"`
	Required       *decimal.Decimal `json:"required,omitempty"`
	Available      *decimal.Decimal `json:"available,omitempty"`
	LimitPrice     *decimal.Decimal `json:"limit_price,omitempty"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
	Held           *int64           `json:"held,omitempty"`
	Requested      *int64           `json:"requested,omitempty"`
}

type Trade struct {
	TradeID     string          `json:"trade_id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderResult is the outcome of PlaceOrder. Exactly one of Trade and
// Rejection is set.
type OrderResult struct {
	Accepted    bool            `json:"accepted"`
	Trade       *Trade          `json:"trade,omitempty"`
	Rejection   *Rejection      `json:"rejection,omitempty"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

type Account struct {
	UserID      int64           `json:"user_id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Value        decimal.Decimal `json:"position_value"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
	// PriceStale is set when the latest price was unavailable and AverageCost was used.
	PriceStale bool `json:"price_stale"`
}

type Portfolio struct {
	CashBalance     decimal.Decimal `json:"cash_balance"`
	Positions       []Position      `json:"positions"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal `json:"total_pnl_percent"`
}

func ptr[T any](v T) *T {
	return &v
}
