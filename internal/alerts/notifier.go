package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notification is handed to a Notifier once per fired alert.
type Notification struct {
	AlertID        uint            `json:"alert_id"`
	UserID         int64           `json:"user_id"`
	Target         string          `json:"target"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	Threshold      decimal.Decimal `json:"threshold"`
	AlertCreatedAt time.Time       `json:"alert_created_at"`
	TriggeredAt    time.Time       `json:"triggered_at"`
}

// Notifier delivers fired alerts. Delivery is best effort; the evaluator logs
// failures and never retries.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Notifiers fans a notification out to every member and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range ns {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes fired alerts to the log in place of outbound delivery.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.Info("price alert triggered",
		zap.Uint("alert_id", n.AlertID),
		zap.String("target", n.Target),
		zap.String("symbol", n.Symbol),
		zap.String("side", string(n.Side)),
		zap.String("price", n.Price.String()),
		zap.String("threshold", n.Threshold.String()),
		zap.Time("triggered_at", n.TriggeredAt))
	return nil
}
